// Package display defines the text panel of the ground station and turns
// tracker frames into the rows shown on it.
package display

// Display is implemented by the panel drivers (see package lcd). Rows are
// addressed from GetMinMaxRowNum, text longer than GetCharsPerLine is cut
// unless scroll is set.
type Display interface {
	// Backlight is also used to dim the panel while the stick is idle.
	Backlight(on bool)
	Clear()
	ClearLine(row int)
	Close()
	GetCharsPerLine() int
	GetMinMaxRowNum() (int, int)
	PrintLine(row int, text string, scroll bool)
}
