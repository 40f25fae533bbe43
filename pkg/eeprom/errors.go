package eeprom

import "errors"

var (
	ErrDecode        = errors.New("eeprom: failed to decode SII data")
	ErrNoCategory    = errors.New("eeprom: category not present")
	ErrSectionOverrun = errors.New("eeprom: read past end of category section")
	ErrSectionUnderrun = errors.New("eeprom: category section shorter than expected")
	ErrTimeout       = errors.New("eeprom: SII busy-wait timed out")
)
