package domain

// AttachmentType tags a persisted attachment entry.
type AttachmentType string

const (
	AttachmentUpload AttachmentType = "upload"
	AttachmentURL    AttachmentType = "url"
)

// AttachmentRecord is the persisted JSON shape of one attachment entry.
type AttachmentRecord struct {
	ID   string         `json:"id,omitempty"`
	Type AttachmentType `json:"type"`
	Name string         `json:"name"`
	URL  string         `json:"url"`
}

// Attachment is the closed variant of validated attachment references:
// UploadAttachment or URLAttachment.
type Attachment interface {
	Filename() string
	Record() AttachmentRecord
	attachment()
}

// UploadAttachment references a file in upload storage by its /uploads/ path.
type UploadAttachment struct {
	Name string
	Path string
}

func (a UploadAttachment) Filename() string { return a.Name }
func (a UploadAttachment) Record() AttachmentRecord {
	return AttachmentRecord{Type: AttachmentUpload, Name: a.Name, URL: a.Path}
}
func (UploadAttachment) attachment() {}

// URLAttachment references an externally hosted file.
type URLAttachment struct {
	Name string
	URL  string
}

func (a URLAttachment) Filename() string { return a.Name }
func (a URLAttachment) Record() AttachmentRecord {
	return AttachmentRecord{Type: AttachmentURL, Name: a.Name, URL: a.URL}
}
func (URLAttachment) attachment() {}

// File is a resolved attachment ready for a transport.
type File struct {
	Filename string
	Content  []byte
}

// EmailMessage is the fully-resolved message handed to a transport.
// Personalization is complete by the time a message reaches this struct.
type EmailMessage struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTML        string `json:"html"`
	Attachments []File `json:"-"`
}
