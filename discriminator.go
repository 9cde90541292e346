package omnibus

// Discriminator narrows a subscription to the messages whose validated
// payload it matches. It sees the payload in internal case.
type Discriminator interface {
	Match(v View) bool
}

// DiscriminatorFunc adapts a function to a Discriminator.
type DiscriminatorFunc func(v View) bool

// Match calls f.
func (f DiscriminatorFunc) Match(v View) bool { return f(v) }

// HasFields matches payloads in which every path exists. Optional fields
// such as "canMsg" exist when present as null.
func HasFields(paths ...string) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		for _, p := range paths {
			if !v.HasField(p) {
				return false
			}
		}
		return true
	})
}

// FieldEquals matches payloads whose path holds the string value. Numbers
// never match; use FieldIs for them.
func FieldEquals(path, value string) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		s, ok := v.GetString(path)
		return ok && s == value
	})
}

// FieldIs matches payloads whose path holds a value written as value,
// whatever its JSON type. FieldIs("sampleRate", "1000") matches the number
// 1000 and FieldIs("msgPrio", "HIGH") the string "HIGH".
func FieldIs(path, value string) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		s, ok := v.GetText(path)
		return ok && s == value
	})
}

// And matches when every discriminator matches. And() matches everything.
func And(ds ...Discriminator) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		for _, d := range ds {
			if !d.Match(v) {
				return false
			}
		}
		return true
	})
}

// Or matches when at least one discriminator matches. Or() matches nothing.
func Or(ds ...Discriminator) Discriminator {
	return DiscriminatorFunc(func(v View) bool {
		for _, d := range ds {
			if d.Match(v) {
				return true
			}
		}
		return false
	})
}

// Not inverts d.
func Not(d Discriminator) Discriminator {
	return DiscriminatorFunc(func(v View) bool { return !d.Match(v) })
}
