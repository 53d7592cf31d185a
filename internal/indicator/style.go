package indicator

import "github.com/rbright/askvoice/internal/notify"

// Hyprland notify icons.
const (
	iconError = 3
	iconOK    = 5
)

type style struct {
	icon  int
	color string
}

func styleFor(category notify.Category) style {
	if category.Failure() {
		return style{icon: iconError, color: "rgb(f38ba8)"}
	}
	return style{icon: iconOK, color: "rgb(a6e3a1)"}
}
