package discovery

import (
	"context"
	"time"

	"github.com/scanhub/scanhub/internal/model"
)

// catalogEntry is one device a simulated provider will report.
type catalogEntry struct {
	name          string
	class         string
	maxResolution int
	hasDuplex     bool
	hasFeeder     bool
}

// Simulated is a discovery provider that reports a fixed catalog after an
// initial protocol delay plus a per-device found delay.
type Simulated struct {
	platform  string
	apiLabel  string
	catalog   []catalogEntry
	initial   time.Duration
	perDevice time.Duration
}

// Discover waits out the handshake delay, then reports each catalog device
// after its own enumeration delay. Fresh IDs are minted per call, so two
// discovery runs never share device identity.
func (s *Simulated) Discover(ctx context.Context) ([]model.Device, error) {
	if err := wait(ctx, s.initial); err != nil {
		return nil, err
	}

	devices := make([]model.Device, 0, len(s.catalog))
	for _, entry := range s.catalog {
		if err := wait(ctx, s.perDevice); err != nil {
			return nil, err
		}
		d := model.NewDevice(entry.name, entry.class, s.platform)
		d.Capabilities.MaxResolution = entry.maxResolution
		d.Capabilities.HasDuplex = entry.hasDuplex
		d.Capabilities.HasFeeder = entry.hasFeeder
		devices = append(devices, d)
	}
	return devices, nil
}

// APILabel reports the platform scanning API this provider models.
func (s *Simulated) APILabel() string {
	return s.apiLabel
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterSimulated installs the three platform catalogs with the given
// delays. The catalogs mirror a plausible fleet per platform API.
func RegisterSimulated(p *Providers, initial, perDevice time.Duration) {
	p.Register(model.SystemWindows, &Simulated{
		platform:  model.SystemWindows,
		apiLabel:  "WIA",
		initial:   initial,
		perDevice: perDevice,
		catalog: []catalogEntry{
			{"HP ScanJet Pro 2500 f1", model.ClassFeeder, 1200, true, true},
			{"Canon CanoScan LiDE 400", model.ClassFlatbed, 4800, false, false},
		},
	})
	p.Register(model.SystemMacOS, &Simulated{
		platform:  model.SystemMacOS,
		apiLabel:  "ImageCaptureCore",
		initial:   initial,
		perDevice: perDevice,
		catalog: []catalogEntry{
			{"Epson Perfection V850 Pro", model.ClassPhoto, 6400, false, false},
			{"Brother MFC-L3770CDW", model.ClassFeeder, 1200, true, true},
		},
	})
	p.Register(model.SystemLinux, &Simulated{
		platform:  model.SystemLinux,
		apiLabel:  "SANE",
		initial:   initial,
		perDevice: perDevice,
		catalog: []catalogEntry{
			{"HP LaserJet MFP M28w", model.ClassFlatbed, 1200, false, false},
			{"SANE Generic Scanner", model.ClassFeeder, 600, true, true},
		},
	})
}
