package asite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/traversal"
)

// OpenForm opens the form of target in a new tab, creating it first when
// the location has none. Empty text fields are filled with the defaults.
func (b *Browser) OpenForm(ctx context.Context, target traversal.Target) error {
	b.closeForm()

	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	page := b.plan.Context(ctx)
	b.hideSupportWidget(page)

	cell, err := page.ElementX(formCellXPath(target.Row, b.opts.FormColumn))
	if err != nil {
		return b.sessionCheck(b.plan, "open form", fmt.Errorf("form cell not found: %w", err))
	}
	if err := cell.ScrollIntoView(); err != nil {
		return err
	}

	waitOpen := page.WaitOpen()
	if target.Form == traversal.FormNone {
		if err := b.clickCreate(page, target.Row); err != nil {
			return err
		}
	} else if err := cell.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to open form: %w", err)
	}
	tab, err := waitOpen()
	if err != nil {
		return fmt.Errorf("form tab did not open: %w", err)
	}
	b.form = tab
	b.formRoot = tab

	tab = tab.Context(ctx)
	if err := tab.WaitLoad(); err != nil {
		return err
	}

	if target.Form == traversal.FormNone {
		frameEl, err := tab.ElementX(createFormFrameXPath)
		if err != nil {
			return fmt.Errorf("create form frame not found: %w", err)
		}
		frame, err := frameEl.Frame()
		if err != nil {
			return err
		}
		b.formRoot = frame
	} else {
		edit, err := tab.ElementX(editFormXPath)
		if err != nil {
			return b.sessionCheck(tab, "open form", fmt.Errorf("edit button not found: %w", err))
		}
		if err := edit.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
	}

	return b.fillFields(ctx, target.Code.String())
}

func (b *Browser) clickCreate(page *rod.Page, row int) error {
	icon, err := page.ElementX(createIconXPath(row, b.opts.FormColumn))
	if err != nil {
		return fmt.Errorf("create icon not found: %w", err)
	}
	if err := icon.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	create, err := page.ElementX(createFormXPath)
	if err != nil {
		return fmt.Errorf("form action dialog did not appear: %w", err)
	}
	return create.Click(proto.InputMouseButtonLeft, 1)
}

// fillFields writes defaults into fields holding at most two characters.
// The fourth field takes the site area of the form, or the location code
// when the form shows none. The last field takes the materials answer.
func (b *Browser) fillFields(ctx context.Context, code string) error {
	root := b.formRoot.Context(ctx)
	if _, err := root.ElementX(formFieldsXPath); err != nil {
		return fmt.Errorf("form fields did not load: %w", err)
	}
	fields, err := root.ElementsX(formFieldsXPath)
	if err != nil {
		return err
	}
	area := code
	if text := b.siteArea(root); text != "" {
		area = text
	}
	values := []string{b.opts.Form.Reference, b.opts.Form.Title, b.opts.Form.Certificate, area}
	for i, value := range values {
		if i >= len(fields) {
			break
		}
		if err := fillEmpty(fields[i], value); err != nil {
			return fmt.Errorf("failed to fill form field %d: %w", i+1, err)
		}
	}
	if len(fields) > len(values) && b.opts.Form.Materials != "" {
		last := fields[len(fields)-1]
		_ = last.ScrollIntoView()
		if err := fillEmpty(last, b.opts.Form.Materials); err != nil {
			return fmt.Errorf("failed to fill form field %d: %w", len(fields), err)
		}
	}
	return b.addComment(root)
}

func fillEmpty(field *rod.Element, value string) error {
	current, err := field.Property("value")
	if err == nil && len(current.String()) > 2 {
		return nil
	}
	if err := field.SelectAllText(); err != nil {
		return err
	}
	return field.Input(value)
}

// siteArea reads the disabled site location input of the form.
func (b *Browser) siteArea(root *rod.Page) string {
	has, el, err := root.HasX(siteAreaXPath)
	if err != nil || !has {
		return ""
	}
	value, err := el.Property("value")
	if err != nil {
		return ""
	}
	return siteAreaText(value.String())
}

// addComment adds the quality plan comment unless the form already has one.
func (b *Browser) addComment(root *rod.Page) error {
	if b.opts.Form.Comment == "" {
		return nil
	}
	has, _, err := root.HasX(commentSectionXPath)
	if err != nil || has {
		return err
	}
	button, err := root.ElementX(addCommentXPath)
	if err != nil {
		return fmt.Errorf("comment button not found: %w", err)
	}
	_ = button.ScrollIntoView()
	if err := button.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	text, err := root.ElementX(commentTextXPath)
	if err != nil {
		return fmt.Errorf("comment field not found: %w", err)
	}
	return text.Input(b.opts.Form.Comment)
}

func (b *Browser) openRoot(ctx context.Context, op string) (*rod.Page, error) {
	if b.formRoot == nil {
		return nil, fmt.Errorf("%s: no form open", op)
	}
	return b.formRoot.Context(ctx), nil
}

func (b *Browser) RemotePhotoCount(ctx context.Context) (int, error) {
	root, err := b.openRoot(ctx, "count photos")
	if err != nil {
		return 0, err
	}
	photos, err := root.ElementsX(remotePhotosXPath)
	if err != nil {
		return 0, b.sessionCheck(b.form, "count photos", err)
	}
	return len(photos), nil
}

// DownloadRemotePhotos clicks every attached photo and saves the downloads
// into dir under the names the site suggests.
func (b *Browser) DownloadRemotePhotos(ctx context.Context, dir string) (int, error) {
	root, err := b.openRoot(ctx, "download photos")
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	photos, err := root.ElementsX(remotePhotosXPath)
	if err != nil {
		return 0, b.sessionCheck(b.form, "download photos", err)
	}

	n := 0
	for i, photo := range photos {
		dctx, cancel := context.WithTimeout(ctx, b.opts.UploadTimeout)
		wait := b.browser.Context(dctx).WaitDownload(dir)
		if err := photo.ScrollIntoView(); err != nil {
			cancel()
			return n, err
		}
		if err := photo.Click(proto.InputMouseButtonLeft, 1); err != nil {
			cancel()
			return n, fmt.Errorf("failed to click photo %d: %w", i+1, err)
		}
		info := wait()
		cancel()
		if info == nil {
			return n, fmt.Errorf("download of photo %d did not start", i+1)
		}
		if err := keepDownload(dir, info); err != nil {
			return n, err
		}
		n++
	}
	b.log.Debug("downloaded remote photos", zap.Int("count", n), zap.String("dir", dir))
	return n, nil
}

// keepDownload renames the GUID-named download to its suggested name.
func keepDownload(dir string, info *proto.PageDownloadWillBegin) error {
	src := filepath.Join(dir, info.GUID)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("download %s did not finish: %w", info.SuggestedFilename, err)
	}
	name := filepath.Base(info.SuggestedFilename)
	if name == "" || name == "." {
		name = info.GUID + ".jpg"
	}
	return os.Rename(src, filepath.Join(dir, name))
}

// UploadPhoto attaches path to the photo section and waits until the
// upload indicator is gone.
func (b *Browser) UploadPhoto(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.UploadTimeout)
	defer cancel()
	root, err := b.openRoot(ctx, "upload photo")
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	has, input, err := root.HasX(uploadInputXPath)
	if err != nil {
		return err
	}
	if !has {
		add, err := root.ElementX(addAttachmentXPath)
		if err != nil {
			return b.sessionCheck(b.form, "upload photo", fmt.Errorf("attachment button not found: %w", err))
		}
		if err := add.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		if input, err = root.ElementX(uploadInputXPath); err != nil {
			return fmt.Errorf("upload input not found: %w", err)
		}
	}
	if err := input.SetFiles([]string{abs}); err != nil {
		return b.sessionCheck(b.form, "upload photo", fmt.Errorf("failed to attach %s: %w", filepath.Base(path), err))
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		uploading, _, err := root.HasX(uploadingXPath)
		if err != nil {
			return b.sessionCheck(b.form, "upload photo", err)
		}
		if !uploading {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("upload of %s did not finish: %w", filepath.Base(path), ctx.Err())
		case <-ticker.C:
		}
	}
}

// CloseForm saves the form when save is set and closes its tab.
func (b *Browser) CloseForm(ctx context.Context, save bool) error {
	if b.form == nil {
		return nil
	}
	defer b.closeForm()
	if !save {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	root := b.formRoot.Context(ctx)
	btn, err := root.ElementX(saveFormXPath)
	if err != nil {
		return b.sessionCheck(b.form, "save form", fmt.Errorf("save button not found: %w", err))
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	if err := b.form.Context(ctx).WaitStable(time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (b *Browser) closeForm() {
	if b.form == nil {
		return
	}
	if err := b.form.Close(); err != nil {
		b.log.Debug("failed to close form tab", zap.Error(err))
	}
	b.form = nil
	b.formRoot = nil
	if _, err := b.plan.Activate(); err != nil {
		b.log.Debug("failed to activate plan tab", zap.Error(err))
	}
}
