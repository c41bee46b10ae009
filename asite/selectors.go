package asite

import (
	"fmt"
	"strings"

	"github.com/camden-git/sitephotosync/traversal"
)

const (
	loginFrameXPath    = `//*[@id="iFrameAsite"]`
	loginInputXPath    = `//*[@id="_58_login"]`
	passwordInputXPath = `//*[@id="_58_password"]`
	loginSubmitXPath   = `//*[@id="login-cloud"]`

	moreNavXPath    = `//*[@id="header_moreNav"]`
	qualityNavXPath = `//*[@id="navquality"]`
	planTableXPath  = `//*[@id="table_body_header_scroller"]`

	supportWidgetClass = "intercom-lightweight-app"

	formActionModalXPath = `//*[@id="subscriptionPlanId-2"]/ngb-modal-window`
	createFormXPath      = formActionModalXPath + `/div/div/div[2]/div[1]/img`
	createFormFrameXPath = `//*[@id="createFormIframe"]`
	editFormXPath        = `//*[@id="edit-ori-btn"]/i`
	formFieldsXPath      = `//*[@id="custFormTD"]/div//div[@class="obr-section"]/div[contains(@ng-switch-when, "textbox")]//input`
	saveFormXPath        = `//*[@id="btnSaveForm"]`
	siteAreaXPath        = `//*[@id="custFormTD"]/div[2]/div/section[2]/div[1]/div[1]/div[3]/input`
	commentSectionXPath  = `//*[@id="custFormTD"]//div[contains(@class, "comment-section")]`
	planItemXPath        = `//*[@id="custFormTD"]/div[2]/div/section[2]/div[1]/section[2]/div/div[8]/div`
	addCommentXPath      = planItemXPath + `/div[1]/div[2]/div[1]/div[2]/button`
	commentTextXPath     = planItemXPath + `/div[2]//div[contains(@class, "comment-section")]/div[2]/textarea`

	photoSectionXPath   = `//div[contains(text(), '2.3')]/ancestor::div[contains(@class, 'activity-row')]`
	addAttachmentXPath  = photoSectionXPath + `//div[contains(@class, 'add-new-item') and contains(., 'Add New Attachment')]//span`
	uploadInputXPath    = `//div[.//div[normalize-space(text()) = "2.3"]]//input[contains(@id, "imgupload_multi_AttachedDocs")]`
	uploadingXPath      = `//img[contains(@ng-if, "file.isUploading")]`
	remotePhotosXPath   = photoSectionXPath + `//div[contains(@class, 'attachment')]//img[not(contains(@ng-if, "file.isUploading"))]`
	unauthorisedTitle   = "Unauthorised"
	expandedArrowMarker = "chevron-up"
)

// siteAreaText turns the site location breadcrumb "Block A > Level 1 > Plot 7"
// into the area of inspection text.
func siteAreaText(raw string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(raw, ">", " ")), " ")
}

func rowTitleXPath(row int) string {
	return fmt.Sprintf(`//*[@id="table_body_header_scroller"]/div/div[%d]//div[contains(@class, "location-title")]`, row)
}

func rowArrowXPath(row int) string {
	return fmt.Sprintf(`//*[@id="table_body_header_scroller"]/div/div[%d]/div/i`, row)
}

func formCellXPath(row, column int) string {
	return fmt.Sprintf(`//*[@id="table_body_content_scroller"]/div/div[%d]/div/div[%d]`, row, column)
}

func createIconXPath(row, column int) string {
	return formCellXPath(row, column) + "/div/img"
}

// formStateOf reads the form cell of a plot row. A cell offering the
// create icon has no form yet.
func formStateOf(text string, hasCreateIcon bool) traversal.Probe[traversal.FormState] {
	t := strings.ToLower(strings.Join(strings.Fields(text), " "))
	switch {
	case strings.Contains(t, "completed"):
		return traversal.Present(traversal.FormCompleted)
	case strings.Contains(t, "in progress"):
		return traversal.Present(traversal.FormEditable)
	case hasCreateIcon:
		return traversal.Absent[traversal.FormState]()
	default:
		return traversal.Failed[traversal.FormState](fmt.Errorf("unknown form cell %q", text))
	}
}
