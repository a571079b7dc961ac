package keystore

// Source supplies the path to hex key mapping a bootstrap step registers.
//
// Paths are returned in the form Registry.Register expects: either absolute
// or relative to the working directory.
type Source interface {
	Keys() (map[string]string, error)
}
