package asite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/camden-git/sitephotosync/traversal"
)

func (b *Browser) ReadCellText(ctx context.Context, row int) traversal.Probe[string] {
	ctx, cancel := context.WithTimeout(ctx, b.opts.ElementTimeout)
	defer cancel()

	el, err := b.plan.Context(ctx).ElementX(rowTitleXPath(row))
	if err != nil {
		if timedOut(err) {
			return traversal.Absent[string]()
		}
		return traversal.Failed[string](b.sessionCheck(b.plan, "read row", err))
	}
	if err := el.ScrollIntoView(); err != nil {
		return traversal.Failed[string](err)
	}
	title, err := el.Attribute("title")
	if err != nil {
		return traversal.Failed[string](err)
	}
	if title != nil && strings.TrimSpace(*title) != "" {
		return traversal.Present(strings.TrimSpace(*title))
	}
	text, err := el.Text()
	if err != nil {
		return traversal.Failed[string](err)
	}
	return traversal.Present(strings.TrimSpace(text))
}

// ClickExpand opens a Block or Level row and waits until its arrow points
// up. Rows that are already open are left alone.
func (b *Browser) ClickExpand(ctx context.Context, row int) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.ElementTimeout)
	defer cancel()
	page := b.plan.Context(ctx)

	arrow, err := page.ElementX(rowArrowXPath(row))
	if err != nil {
		return b.sessionCheck(b.plan, "expand row", fmt.Errorf("expand arrow of row %d not found: %w", row, err))
	}
	if open, err := hasClass(arrow.Attribute("class")); err == nil && open {
		return nil
	}
	b.hideSupportWidget(page)
	if err := arrow.ScrollIntoView(); err != nil {
		return err
	}
	if err := arrow.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click row %d: %w", row, err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if open, err := hasClass(arrow.Attribute("class")); err == nil && open {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("row %d did not expand: %w", row, ctx.Err())
		case <-ticker.C:
		}
	}
}

func hasClass(class *string, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return class != nil && strings.Contains(*class, expandedArrowMarker), nil
}

func (b *Browser) LocationFormState(ctx context.Context, row int) traversal.Probe[traversal.FormState] {
	ctx, cancel := context.WithTimeout(ctx, b.opts.ElementTimeout)
	defer cancel()
	page := b.plan.Context(ctx)

	cell, err := page.ElementX(formCellXPath(row, b.opts.FormColumn))
	if err != nil {
		return traversal.Failed[traversal.FormState](b.sessionCheck(b.plan, "read form state",
			fmt.Errorf("form cell of row %d not found: %w", row, err)))
	}
	text, err := cell.Text()
	if err != nil {
		return traversal.Failed[traversal.FormState](err)
	}
	hasIcon, _, err := page.HasX(createIconXPath(row, b.opts.FormColumn))
	if err != nil {
		return traversal.Failed[traversal.FormState](err)
	}
	return formStateOf(text, hasIcon)
}
