package tui

// layout holds the panel geometry derived from the terminal size. The list
// takes 40% of the width and the preview the rest; one row each goes to
// the input line and the status bar.
type layout struct {
	listW    int
	previewW int
	panelH   int
}

const (
	borderW = 2 // left + right border of a panel
	chromeH = 6 // input + status + top/bottom borders, with slack
)

func computeLayout(width, height int) layout {
	l := layout{listW: 40, previewW: 60, panelH: 20}
	if width > 0 {
		l.listW = max(width*40/100-2*borderW, 20)
		l.previewW = max(width-l.listW-3*borderW, 20)
	}
	if height > 0 {
		l.panelH = max(height-chromeH, 5)
	}
	return l
}

func (l layout) visibleItems() int {
	return max(l.panelH/linesPerItem, 1)
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps a terminal cell to a panel and, inside the list, to the
// index of the result drawn there.
func (l layout) hitTest(x, y, listOffset int) (mouseRegion, int) {
	top := 2 // input row + top border
	if y < top || y >= top+l.panelH {
		return regionNone, -1
	}
	switch {
	case x >= 1 && x <= l.listW:
		return regionList, listOffset + (y-top)/linesPerItem
	case x > l.listW+borderW:
		return regionPreview, -1
	}
	return regionNone, -1
}
