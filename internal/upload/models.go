package upload

// Record describes one persisted file. It is logged, never returned to clients.
type Record struct {
	Field        string
	OriginalName string
	StoredName   string
	Location     string
	Size         int64
	ContentType  string
}

// Limits bounds a single upload request.
type Limits struct {
	Field       string
	MaxFiles    int
	MaxFileSize int64
}

// multipart framing and text fields on top of the file payloads
const formOverhead = 1 << 20

// RequestLimit is the largest request body accepted before parsing.
func (l Limits) RequestLimit() int64 {
	return int64(l.MaxFiles)*l.MaxFileSize + formOverhead
}
