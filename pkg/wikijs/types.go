package wikijs

import "time"

// Page is a Wiki.js page.
type Page struct {
	ID          int       `json:"id"                    yaml:"id"`
	Path        string    `json:"path"                  yaml:"path"`
	Locale      string    `json:"locale"                yaml:"locale"`
	Title       string    `json:"title"                 yaml:"title"`
	Description string    `json:"description"           yaml:"description"`
	Content     string    `json:"content,omitempty"     yaml:"content,omitempty"`
	ContentType string    `json:"contentType,omitempty" yaml:"content_type,omitempty"`
	Editor      string    `json:"editor,omitempty"      yaml:"editor,omitempty"`
	IsPublished bool      `json:"isPublished"           yaml:"is_published"`
	IsPrivate   bool      `json:"isPrivate"             yaml:"is_private"`
	Tags        []string  `json:"tags"                  yaml:"tags"`
	AuthorID    int       `json:"authorId,omitempty"    yaml:"author_id,omitempty"`
	AuthorName  string    `json:"authorName,omitempty"  yaml:"author_name,omitempty"`
	AuthorEmail string    `json:"authorEmail,omitempty" yaml:"author_email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"             yaml:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"             yaml:"updated_at"`
}

// PageCreate holds the fields for creating a page.
type PageCreate struct {
	Title       string   `json:"title"       yaml:"title"`
	Path        string   `json:"path"        yaml:"path"`
	Content     string   `json:"content"     yaml:"content"`
	Description string   `json:"description" yaml:"description"`
	Locale      string   `json:"locale"      yaml:"locale"`
	Editor      string   `json:"editor"      yaml:"editor"`
	IsPublished bool     `json:"isPublished" yaml:"is_published"`
	IsPrivate   bool     `json:"isPrivate"   yaml:"is_private"`
	Tags        []string `json:"tags"        yaml:"tags"`
}

// PageUpdate holds the fields to change on a page. Nil fields are left as is.
type PageUpdate struct {
	Title       *string  `json:"title,omitempty"       yaml:"title,omitempty"`
	Content     *string  `json:"content,omitempty"     yaml:"content,omitempty"`
	Description *string  `json:"description,omitempty" yaml:"description,omitempty"`
	IsPublished *bool    `json:"isPublished,omitempty" yaml:"is_published,omitempty"`
	IsPrivate   *bool    `json:"isPrivate,omitempty"   yaml:"is_private,omitempty"`
	Tags        []string `json:"tags,omitempty"        yaml:"tags,omitempty"`
}

// Page list ordering.
const (
	OrderByCreated = "CREATED"
	OrderByID      = "ID"
	OrderByPath    = "PATH"
	OrderByTitle   = "TITLE"
	OrderByUpdated = "UPDATED"
)

// PageListOptions filters and orders a page listing. Wiki.js has no offset
// argument, so Offset is applied to the fetched listing.
type PageListOptions struct {
	Limit            int
	Offset           int
	OrderBy          string
	OrderByDirection string
	Tags             []string
	Locale           string
	CreatorID        int
	AuthorID         int
}

// PageSearchResult is a single search hit.
type PageSearchResult struct {
	ID          string `json:"id"          yaml:"id"`
	Title       string `json:"title"       yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Path        string `json:"path"        yaml:"path"`
	Locale      string `json:"locale"      yaml:"locale"`
}

// PageSearchResponse holds search hits and the total hit count.
type PageSearchResponse struct {
	Results   []PageSearchResult `json:"results"   yaml:"results"`
	TotalHits int                `json:"totalHits" yaml:"total_hits"`
}

// PageSearchOptions narrows a search.
type PageSearchOptions struct {
	Path   string
	Locale string
}

// PageBatchUpdate is one item of an UpdateMany call.
type PageBatchUpdate struct {
	ID     int
	Update *PageUpdate
}

// PageBatchResult is the outcome of one item of a batch call. Results keep
// the order of the input.
type PageBatchResult struct {
	Index int   `json:"index"          yaml:"index"`
	ID    int   `json:"id,omitempty"   yaml:"id,omitempty"`
	Page  *Page `json:"page,omitempty" yaml:"page,omitempty"`
	Err   error `json:"-"              yaml:"-"`
}

// SiteInfo is the minimal site description returned by a connection test.
type SiteInfo struct {
	Title string `json:"title" yaml:"title"`
}
