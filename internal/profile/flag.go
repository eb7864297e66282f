package profile

// Flag is a boolean that may not be known yet because the record it is
// derived from has not been fetched.
type Flag int8

const (
	Unknown Flag = iota
	False
	True
)

// FlagOf lifts a known boolean.
func FlagOf(b bool) Flag {
	if b {
		return True
	}
	return False
}

// Known reports whether the value has been established.
func (f Flag) Known() bool { return f != Unknown }

// IsTrue reports whether the value is known and true.
func (f Flag) IsTrue() bool { return f == True }

// IsFalse reports whether the value is known and false. Unknown is neither.
func (f Flag) IsFalse() bool { return f == False }

func (f Flag) String() string {
	switch f {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// and short-circuits like a chain of optional booleans: the first known false
// wins, an unknown before it makes the result unknown.
func and(flags ...Flag) Flag {
	for _, f := range flags {
		if f != True {
			return f
		}
	}
	return True
}
