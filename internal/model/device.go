package model

// Device status constants.
const (
	DeviceAvailable = "available"
	DeviceBusy      = "busy"
	DeviceOffline   = "offline"
	DeviceError     = "error"
)

// Device class constants.
const (
	ClassFlatbed  = "flatbed"
	ClassFeeder   = "feeder"
	ClassSheetFed = "sheet_fed"
	ClassHandheld = "handheld"
	ClassFilm     = "film"
	ClassPhoto    = "photo"
)

// System class constants. A device's system class records which platform
// discovery path produced it.
const (
	SystemWindows = "windows"
	SystemMacOS   = "macos"
	SystemLinux   = "linux"
)

// Color mode constants.
const (
	ColorBW        = "bw"
	ColorGrayscale = "grayscale"
	ColorFull      = "color"
)

// Paper size constants.
const (
	PaperA4     = "a4"
	PaperA3     = "a3"
	PaperLetter = "letter"
	PaperLegal  = "legal"
)

// Capabilities describes what a device can physically do.
type Capabilities struct {
	MaxResolution int      `json:"max_resolution"`
	ColorModes    []string `json:"color_modes"`
	PaperSizes    []string `json:"paper_sizes"`
	HasDuplex     bool     `json:"has_duplex"`
	HasFeeder     bool     `json:"has_feeder"`
}

// DefaultCapabilities returns the capability set assumed for a device that
// has not reported anything more specific.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		MaxResolution: 600,
		ColorModes:    []string{ColorBW, ColorGrayscale, ColorFull},
		PaperSizes:    []string{PaperA4, PaperA3, PaperLetter, PaperLegal},
		HasDuplex:     true,
		HasFeeder:     false,
	}
}

// Device represents an abstract peripheral with capabilities and an
// availability status. StatusReason is only set for the error status.
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Class        string       `json:"class"`
	Status       string       `json:"status"`
	StatusReason string       `json:"status_reason,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
	System       string       `json:"system"`
}

// NewDevice creates an available device with default capabilities.
func NewDevice(name, class, system string) Device {
	return Device{
		ID:           NewID(),
		Name:         name,
		Class:        class,
		Status:       DeviceAvailable,
		Capabilities: DefaultCapabilities(),
		System:       system,
	}
}

// IsAvailable reports whether a job may be created against the device.
func (d Device) IsAvailable() bool {
	return d.Status == DeviceAvailable
}
