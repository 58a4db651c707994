package templates

import (
	"time"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
)

// Tab is one entry in the page navigation.
type Tab struct {
	Name   string
	Title  string
	Active bool
}

// UploadInfo describes the file currently held for a tab.
type UploadInfo struct {
	ID        string
	Filename  string
	Size      int
	OrderName string
	Uploaded  time.Time
}

// LegendEntry is a toggle link for one condition.
type LegendEntry struct {
	Condition string
	Colour    string
	Hidden    bool
	Href      string
}

// PageView is everything the pipeline page needs.
type PageView struct {
	Tabs        []Tab
	Pipeline    string
	Title       string
	Required    []string
	Allowed     []string
	AcceptOrder bool
	MaxUploadMB int

	Upload *UploadInfo
	Result *analysis.Result
	Err    error

	Legend   []LegendEntry
	ChartURL string
	// HideQuery is the encoded hide= query carried to downloads.
	HideQuery string
}
