package model

// RepositoryDescriptor is the minimal address of one repository on GitHub.
// It is never persisted.
type RepositoryDescriptor struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns "owner/name", the form GitHub uses in URLs and logs.
func (r RepositoryDescriptor) FullName() string {
	return r.Owner + "/" + r.Name
}

// AggregationResult is the output of one scan. It lives for a single request.
type AggregationResult struct {
	RepoCount   int `json:"repoCount"`
	CommitCount int `json:"commitCount"`
}
