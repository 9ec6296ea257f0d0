// pkg/render/engo/input.go
package engo

import (
	"github.com/EngoEngine/engo"

	"github.com/opd-ai/go-gimbal/pkg/control"
)

// Button names registered with engo.Input
const (
	ButtonGimbalLeft   = "gimbalLeft"
	ButtonGimbalRight  = "gimbalRight"
	ButtonThrottleUp   = "throttleUp"
	ButtonThrottleDown = "throttleDown"
	ButtonQuit         = "quit"
)

var buttonControls = []struct {
	button  string
	control control.Control
}{
	{ButtonGimbalLeft, control.GimbalLeft},
	{ButtonGimbalRight, control.GimbalRight},
	{ButtonThrottleUp, control.ThrottleUp},
	{ButtonThrottleDown, control.ThrottleDown},
}

// SetupInputBindings sets up the key bindings for the flight controls
func SetupInputBindings() {
	engo.Input.RegisterButton(ButtonGimbalLeft, engo.KeyArrowLeft)
	engo.Input.RegisterButton(ButtonGimbalRight, engo.KeyArrowRight)
	engo.Input.RegisterButton(ButtonThrottleUp, engo.KeyArrowUp)
	engo.Input.RegisterButton(ButtonThrottleDown, engo.KeyArrowDown)
	engo.Input.RegisterButton(ButtonQuit, engo.KeyEscape)
}

// HeldFromButtons builds the held set from a button state query.
func HeldFromButtons(down func(button string) bool) control.Held {
	var held control.Held
	for _, entry := range buttonControls {
		if down(entry.button) {
			held = held.Press(entry.control)
		}
	}
	return held
}

// buttonDown queries engo's input manager
func buttonDown(button string) bool {
	return engo.Input.Button(button).Down()
}
