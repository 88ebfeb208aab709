package memory

import "errors"

// Sentinel errors for the cartridge slot's failure modes. Callers match
// them with errors.Is; the wrapping message carries the specifics
// (offending header byte, address, bank).
var (
	// ErrInvalidCartridge marks a ROM image whose header cannot be parsed
	// or names an unsupported bank controller or size code. Emulation
	// never starts.
	ErrInvalidCartridge = errors.New("invalid cartridge")

	// ErrInvalidRAMAccess marks a read or write of disabled cartridge RAM
	// on a banked cartridge. Fatal to the emulation run: the fault is
	// latched on the cartridge and surfaced at the next frame boundary.
	// An offset past the end of the cartridge's RAM is not a fault: the
	// read returns 0xFF and the write is dropped.
	ErrInvalidRAMAccess = errors.New("invalid cartridge RAM access")

	// ErrNotImplemented marks a reachable hardware feature this
	// implementation deliberately omits.
	ErrNotImplemented = errors.New("not implemented")
)
