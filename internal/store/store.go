package store

// Video is one catalog record. Tags is the comma-joined, lower-case,
// trimmed token list as stored.
type Video struct {
	Title string
	URL   string
	Tags  string
}

// Repository is the record store contract consumed by the state machine.
// AddVideo appends without enforcing uniqueness; callers guard duplicates
// through IsDuplicateURL (exact string match). VideosByTag matches the
// requested tag as a case-insensitive substring of the stored tags field
// and returns an already-sampled result of at most limit records.
type Repository interface {
	AllTags() ([]string, error)
	VideosByTag(tag string, limit int) ([]Video, error)
	AddVideo(v Video) error
	IsDuplicateURL(url string) (bool, error)
}
