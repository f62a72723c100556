package iap

import "context"

// Launcher starts an interactive flow on the host platform. The host reports
// the flow's outcome later, tagged with requestCode.
type Launcher interface {
	Launch(intent *Intent, requestCode int) error
}

type LauncherFunc func(intent *Intent, requestCode int) error

func (f LauncherFunc) Launch(intent *Intent, requestCode int) error {
	return f(intent, requestCode)
}

// Dispatcher runs functions in order on the host's UI-affine goroutine.
type Dispatcher interface {
	Post(f func())
}

// Executor runs blocking work off the UI-affine goroutine.
type Executor interface {
	Submit(task func(ctx context.Context)) error
}
