package iap

import "strconv"

// Activity result codes reported by the host when an interactive flow ends.
const (
	ResultOK       = -1
	ResultCanceled = 0
)

// Intent is the opaque payload exchanged with the host platform: vendors
// return one to launch an interactive flow, and the host hands one back with
// the flow's result.
type Intent struct {
	Action string
	Extras map[string]string
}

func NewIntent(action string) *Intent {
	return &Intent{Action: action, Extras: map[string]string{}}
}

// Put sets an extra and returns the intent for chaining.
func (i *Intent) Put(key, value string) *Intent {
	if i.Extras == nil {
		i.Extras = map[string]string{}
	}
	i.Extras[key] = value
	return i
}

// PutInt sets an integer extra.
func (i *Intent) PutInt(key string, value int) *Intent {
	return i.Put(key, strconv.Itoa(value))
}

// Extra returns a string extra. A nil intent has no extras.
func (i *Intent) Extra(key string) (string, bool) {
	if i == nil || i.Extras == nil {
		return "", false
	}
	v, ok := i.Extras[key]
	return v, ok
}

// IntExtra returns an integer extra, or def when it is absent or not a number.
func (i *Intent) IntExtra(key string, def int) int {
	v, ok := i.Extra(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
