package hotkey

type FakeHotkey struct {
	marks chan struct{}
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{marks: make(chan struct{}, 1)}
}

func (f *FakeHotkey) Register() error        { return nil }
func (f *FakeHotkey) Unregister()            {}
func (f *FakeHotkey) Marks() <-chan struct{} { return f.marks }

func (f *FakeHotkey) SimMark() { f.marks <- struct{}{} }
