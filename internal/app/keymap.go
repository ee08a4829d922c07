package app

// Key binding constants used in handleKey.
const (
	KeyQuit          = "q"
	KeyQuitUpper     = "Q"
	KeyCtrlC         = "ctrl+c"
	KeySpace         = " "
	KeyTab           = "tab"
	KeyUp            = "up"
	KeyDown          = "down"
	KeyJ             = "j"
	KeyK             = "k"
	KeyEnter         = "enter"
	KeyCycleDevice   = "i"
	KeyCycleDeviceUp = "I"
	KeyCancel        = "c"
	KeyDelete        = "d"
	KeyRefresh       = "r"
)
