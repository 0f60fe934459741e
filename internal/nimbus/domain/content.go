package domain

import "fmt"

// ContentAction is what the browser does with a response it cannot simply render.
type ContentAction uint8

const (
	ActionRender ContentAction = iota
	ActionSaveAsText
	ActionRedirectToViewer
	ActionDownload
)

func (a ContentAction) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionSaveAsText:
		return "save_as_text"
	case ActionRedirectToViewer:
		return "redirect_to_viewer"
	case ActionDownload:
		return "download"
	default:
		return fmt.Sprintf("ContentAction(%d)", a)
	}
}

// ContentDecision is a transient classification result. It is never stored.
type ContentDecision struct {
	Action    ContentAction
	ViewerURL string // set for ActionRedirectToViewer
	Viewer    string // name of the viewer that produced ViewerURL
}

// DownloadDecision is the fallback decision for content nothing else claims.
func DownloadDecision() ContentDecision { return ContentDecision{Action: ActionDownload} }

// ClassifyInput carries everything the classifier may look at.
type ClassifyInput struct {
	URL                 string // response URL
	MIMEType            string // declared Content-Type, parameters allowed
	UsingExternalViewer bool   // the current document is already a viewer page
	CurrentDocument     string // URL of the document currently displayed
	SaveRequested       bool   // the user asked to save rather than the engine refusing content
	Private             bool   // incognito session
}
