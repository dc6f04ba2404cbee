// +build logless

package emberlog

// Log and New collapse to no-ops under the logless build tag, letting
// callers keep the same Debug()/Info()/Msg() chains without paying for
// zerolog in a build that doesn't want it.
var Log = EmptyLog{}

// New ignores component; every EmptyLog method is a no-op chained return.
func New(string) EmptyLog { return EmptyLog{} }

type EmptyLog struct{}

func (l EmptyLog) Debug() EmptyLog { return l }
func (l EmptyLog) Error() EmptyLog { return l }
func (l EmptyLog) Warn() EmptyLog  { return l }
func (l EmptyLog) Info() EmptyLog  { return l }

func (l EmptyLog) Msg(string) EmptyLog { return l }
func (l EmptyLog) Err(error) EmptyLog  { return l }

func (l EmptyLog) Int(string, int) EmptyLog       { return l }
func (l EmptyLog) Int64(string, int64) EmptyLog   { return l }
func (l EmptyLog) Str(string, string) EmptyLog    { return l }
func (l EmptyLog) Float(string, float64) EmptyLog { return l }
