package domain

// APIVersion names a mounted route generation.
type APIVersion string

const APIVersionV1 APIVersion = "v1"

func (v APIVersion) String() string { return string(v) }
