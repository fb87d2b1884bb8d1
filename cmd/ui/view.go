package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/internal/export"
	"github.com/mlsorensen/bleframe/internal/session"
)

// view renders a session. All methods must run on the fyne goroutine.
type view struct {
	sess    *session.Session
	history []bleframe.Measurement // snapshot shown by list

	device  *widget.Label
	status  *widget.Label
	current *widget.Label
	window  *widget.Label
	count   *widget.Label
	list    *widget.List
}

func newView(sess *session.Session) *view {
	v := &view{
		sess:    sess,
		device:  widget.NewLabel("no device"),
		status:  widget.NewLabel("stopped"),
		current: widget.NewLabelWithStyle("0", fyne.TextAlignCenter, fyne.TextStyle{Bold: true, Monospace: true}),
		window:  widget.NewLabel(""),
		count:   widget.NewLabel(""),
	}
	v.list = widget.NewList(
		func() int { return len(v.history) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			if id < len(v.history) {
				o.(*widget.Label).SetText(historyText(v.history[id]))
			}
		},
	)
	v.refresh()
	return v
}

// refresh copies the session state into the widgets.
func (v *view) refresh() {
	v.history = v.sess.History()

	v.current.SetText(export.FormatValue(v.sess.Current()))

	values := v.sess.Window()
	parts := make([]string, len(values))
	for i, val := range values {
		parts[i] = export.FormatValue(val)
	}
	v.window.SetText(strings.Join(parts, "  "))

	v.count.SetText(fmt.Sprintf("%d measurement(s), scale ±%s", len(v.history), export.FormatValue(v.sess.Bound())))
	v.list.Refresh()
}

func (v *view) setDevice(name string) {
	v.device.SetText(name)
}

func (v *view) setStatus(s string) {
	v.status.SetText(s)
}

func (v *view) content(buttons ...fyne.CanvasObject) fyne.CanvasObject {
	top := container.NewVBox(
		container.NewHBox(v.device, v.status),
		v.current,
		v.window,
		v.count,
		container.NewHBox(buttons...),
	)
	return container.NewBorder(top, nil, nil, nil, v.list)
}

// historyText is one row of the history list.
func historyText(m bleframe.Measurement) string {
	typ := m.Type
	if !m.HasType() {
		typ = "-"
	}
	return fmt.Sprintf("#%d  %s  %s  %s", m.SeqNb, m.Timestamp.Format("15:04:05"), typ, export.FormatValue(m.Value))
}
