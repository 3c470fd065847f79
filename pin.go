package gdbstub

// nopPinner is the default Pinner, for environments without paging or
// where the extender already locks the stub's pages.
type nopPinner struct{}

func (nopPinner) Pin() error   { return nil }
func (nopPinner) Unpin() error { return nil }
