package scan

import "fmt"

// Mode selects how a scan gathers activity and how it is weighted.
//
// The two modes are deliberately different products: the quick mode is a
// cheap estimate from the public event feed, the full mode enumerates every
// commit. They keep separate formulas and must not be unified.
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeFull  Mode = "full"
)

// Weights of the two scoring formulas.
const (
	QuickRepoWeight   = 5
	QuickCommitWeight = 2
	FullRepoWeight    = 10
	FullCommitWeight  = 3
)

// QuickScore weights a quick-scan estimate: repos*5 + commits*2.
func QuickScore(repoCount, commitCount int) int {
	return repoCount*QuickRepoWeight + commitCount*QuickCommitWeight
}

// FullScore weights a full scan: repos*10 + commits*3.
func FullScore(repoCount, commitCount int) int {
	return repoCount*FullRepoWeight + commitCount*FullCommitWeight
}

// Score applies the formula belonging to mode.
func Score(mode Mode, repoCount, commitCount int) (int, error) {
	switch mode {
	case ModeQuick:
		return QuickScore(repoCount, commitCount), nil
	case ModeFull:
		return FullScore(repoCount, commitCount), nil
	default:
		return 0, fmt.Errorf("scan: unknown mode %q", mode)
	}
}
