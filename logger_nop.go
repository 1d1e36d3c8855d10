package libsio

type nopLogger struct{}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() logger { return nopLogger{} }

func (n nopLogger) WithField(string, any) logger { return n }
func (nopLogger) Debug(...any)                   {}
func (nopLogger) Debugf(string, ...any)          {}
func (nopLogger) Debugln(...any)                 {}
func (nopLogger) Info(...any)                    {}
func (nopLogger) Infof(string, ...any)           {}
func (nopLogger) Infoln(...any)                  {}
func (nopLogger) Warn(...any)                    {}
func (nopLogger) Warnf(string, ...any)           {}
func (nopLogger) Warnln(...any)                  {}
func (nopLogger) Error(...any)                   {}
func (nopLogger) Errorf(string, ...any)          {}
func (nopLogger) Errorln(...any)                 {}
