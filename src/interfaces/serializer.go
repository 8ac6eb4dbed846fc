package interfaces

// -----------------------------------------------------------------------------
// ISerializer converts values to and from wire bytes.
// -----------------------------------------------------------------------------

type ISerializer interface {
	Marshal(obj any) ([]byte, error)
	Unmarshal(data []byte, obj any) error
}
