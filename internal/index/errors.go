package index

import "fmt"

// UnavailableError reports an index artifact that is missing, corrupt or
// inconsistent. The search engine degrades to not-ready when it sees one.
type UnavailableError struct {
	Prefix string
	Part   string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("index %q unavailable: %v", e.Prefix, e.Err)
	}
	return fmt.Sprintf("index %q unavailable: %s: %v", e.Prefix, e.Part, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
