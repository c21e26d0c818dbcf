package confmesh

import (
	"github.com/yndnr/confmesh-go/internal/core/domain"
	"github.com/yndnr/confmesh-go/internal/core/service"
	"github.com/yndnr/confmesh-go/internal/storage/codec"
	"github.com/yndnr/confmesh-go/pkg/crypto/adaptive"
)

// Manager and its collaborators.
type (
	Manager        = service.Manager
	ManagerConfig  = service.Config
	ManagerOption  = service.Option
	Namespace      = service.Namespace
	Stats          = service.Stats
	Backend        = service.Backend
	Change         = service.Change
	CallbackFunc   = service.CallbackFunc
	CallbackHandle = service.CallbackHandle
)

// Values.
type (
	Value = domain.Value
	Type  = domain.Type
	I32   = domain.I32
	U32   = domain.U32
	I64   = domain.I64
	Float = domain.Float
	Bool  = domain.Bool
	Str   = domain.Str
	Blob  = domain.Blob
	Entry = domain.Entry

	Default = domain.Default
)

// Status is the result class reported by LastStatus and StatusOf.
type Status = domain.Status

const (
	StatusOK                 = domain.StatusOK
	StatusInvalidParameter   = domain.StatusInvalidParameter
	StatusNotInitialized     = domain.StatusNotInitialized
	StatusAlreadyInitialized = domain.StatusAlreadyInitialized
	StatusNotFound           = domain.StatusNotFound
	StatusKeyTooLong         = domain.StatusKeyTooLong
	StatusBufferTooSmall     = domain.StatusBufferTooSmall
	StatusTypeMismatch       = domain.StatusTypeMismatch
	StatusNoEncryptionKey    = domain.StatusNoEncryptionKey
	StatusInvalidFormat      = domain.StatusInvalidFormat
	StatusCapacityExceeded   = domain.StatusCapacityExceeded
	StatusDecryptFailed      = domain.StatusDecryptFailed
	StatusBackendError       = domain.StatusBackendError
)

// StatusOf maps an error returned by a Manager to its Status.
func StatusOf(err error) Status {
	return domain.StatusOf(err)
}

// Export and import.
type (
	Format = codec.Format
	Flags  = codec.Flags
)

const (
	FormatJSON   = codec.FormatJSON
	FormatBinary = codec.FormatBinary

	FlagPretty     = codec.FlagPretty
	FlagDecrypt    = codec.FlagDecrypt
	FlagClear      = codec.FlagClear
	FlagSkipErrors = codec.FlagSkipErrors
)

// Algorithm selects the value encryption construction.
type Algorithm = adaptive.Algorithm

const (
	AES128           = adaptive.AES128
	AES256           = adaptive.AES256
	ChaCha20Poly1305 = adaptive.ChaCha20Poly1305
)

// NewManager returns an uninitialized Manager for callers that wire their
// own backend and configuration instead of using Open.
func NewManager(opts ...ManagerOption) *Manager {
	return service.NewManager(opts...)
}
