package bridge

import (
	"context"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/ids"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

type popupRecord struct {
	native native.Popup
	at     model.LngLat
	html   string
}

// ShowPopup opens a popup at a position and returns its generated id. Nil
// options use the library defaults.
func (b *Bridge) ShowPopup(ctx context.Context, mapID string, at model.LngLat, html string, opts *model.PopupOptions) (id string, err error) {
	defer func(start time.Time) { b.observe("showPopup", mapID, start, err) }(time.Now())

	if err := at.Validate(); err != nil {
		return "", invalidWrap(mapID, err, "invalid popup position")
	}
	if html == "" {
		return "", invalid(mapID, "popup html is required")
	}
	o := model.DefaultPopupOptions()
	if opts != nil {
		o = *opts
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	p, err := inst.m.NewPopup(ctx, at, html, o)
	if err != nil {
		return "", upstream(mapID, "show popup", err)
	}
	id = ids.WithPrefix("popup")
	b.registry.Register(mapID, KindPopup, id, &popupRecord{native: p, at: at, html: html})
	b.syncMetrics()
	// Popups closed in the page free their id.
	p.On(model.EventPopupClose, func(native.Event) {
		b.registry.Unregister(mapID, KindPopup, id)
		b.syncMetrics()
	})
	return id, nil
}

// ClosePopup closes a popup and frees its id. A popup the user already
// closed is NotFound.
func (b *Bridge) ClosePopup(ctx context.Context, mapID, id string) (err error) {
	defer func(start time.Time) { b.observe("closePopup", mapID, start, err) }(time.Now())

	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := resolveAs[*popupRecord](b.registry, mapID, KindPopup, id)
	if err != nil {
		return err
	}
	if err := rec.native.Remove(ctx); err != nil {
		return upstream(mapID, "close popup", err)
	}
	b.registry.Unregister(mapID, KindPopup, id)
	b.syncMetrics()
	return nil
}
