// Package cursor provides the synchronous mouse-position port. It is used
// only by presentation for placing the selection rectangle; the workflow
// state machine never consults it.
package cursor

import "github.com/go-vgo/robotgo"

type Provider struct{}

func New() Provider { return Provider{} }

// Position returns the current pointer location in virtual-screen
// coordinates.
func (Provider) Position() (x, y int) {
	return robotgo.Location()
}
