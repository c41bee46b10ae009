package asite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/sitephotosync/traversal"
)

func TestRowXPaths(t *testing.T) {
	assert.Equal(t, `//*[@id="table_body_header_scroller"]/div/div[4]//div[contains(@class, "location-title")]`, rowTitleXPath(4))
	assert.Equal(t, `//*[@id="table_body_header_scroller"]/div/div[4]/div/i`, rowArrowXPath(4))
	assert.Equal(t, `//*[@id="table_body_content_scroller"]/div/div[7]/div/div[33]`, formCellXPath(7, 33))
	assert.Equal(t, formCellXPath(7, 33)+"/div/img", createIconXPath(7, 33))
}

func TestSiteAreaText(t *testing.T) {
	assert.Equal(t, "Block A Level 1 Plot 7", siteAreaText("Block A > Level 1 > Plot 7"))
	assert.Equal(t, "Side Rise Plot 12", siteAreaText("  Side Rise>Plot 12 "))
	assert.Empty(t, siteAreaText(""))
}

func TestFormStateOf(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		icon    bool
		present bool
		absent  bool
		state   traversal.FormState
	}{
		{name: "completed", text: " Completed ", present: true, state: traversal.FormCompleted},
		{name: "in progress spread over lines", text: "In\n Progress", present: true, state: traversal.FormEditable},
		{name: "create icon", text: "", icon: true, absent: true},
		{name: "unknown", text: "Rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := formStateOf(tt.text, tt.icon)
			v, ok := p.Get()
			assert.Equal(t, tt.present, ok)
			assert.Equal(t, tt.absent, p.IsAbsent())
			if tt.present {
				assert.Equal(t, tt.state, v)
			}
			if !tt.present && !tt.absent {
				assert.Error(t, p.Err())
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	opts := Options{ElementTimeout: time.Second}
	opts.applyDefaults()

	assert.Equal(t, 20*time.Second, opts.NavigationTimeout)
	assert.Equal(t, time.Second, opts.ElementTimeout)
	assert.Equal(t, 2*time.Minute, opts.UploadTimeout)
	assert.Equal(t, 33, opts.FormColumn)
	assert.Equal(t, DefaultFormDefaults(), opts.Form)
	assert.Equal(t, "Yes", opts.Form.Materials)
	assert.Contains(t, opts.Form.Comment, "PQP")
}

func TestKeepDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0f3c"), []byte("jpeg"), 0o644))

	err := keepDownload(dir, &proto.PageDownloadWillBegin{GUID: "0f3c", SuggestedFilename: "IMG_0001.jpg"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "IMG_0001.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "0f3c"))

	err = keepDownload(dir, &proto.PageDownloadWillBegin{GUID: "missing", SuggestedFilename: "x.jpg"})
	assert.Error(t, err)
}
