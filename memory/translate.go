package memory

// Translate maps a process-logical address into physical memory.
func Translate(logical, base int) int {
	return base + logical
}

// IsValid reports whether an access of sz bytes at logical stays inside the
// window [base, limit).
func IsValid(logical, sz, base, limit int) bool {
	if logical < 0 || sz < 0 {
		return false
	}

	phys := Translate(logical, base)

	return phys < limit && phys+sz <= limit
}
