// Package devicestore remembers devices between runs: names, system IDs and the
// preferred device per device type.
package devicestore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
)

// Device is what we remember about one peripheral.
type Device struct {
	Address     string              `json:"address"`
	Name        string              `json:"name,omitempty"`
	SystemID    string              `json:"system_id,omitempty"` // 01:02:03:04:05:06
	DeviceTypes []gatt.DeviceTypeID `json:"device_types,omitempty"`
	LastSeen    time.Time           `json:"last_seen"`
}

type storeData struct {
	Devices                     map[string]Device            `json:"devices"`
	PreferredDeviceByDeviceType map[gatt.DeviceTypeID]string `json:"preferred_device_by_device_type"`
}

// Store is a JSON file of known devices. Every change is written through.
type Store struct {
	filePath string
	logger   *log.Logger

	mu   sync.RWMutex
	data storeData
}

// DefaultPath is ~/.trainerctl/devices.json.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".trainerctl", "devices.json")
}

// Open loads the store at path, or DefaultPath when path is empty. A missing or
// unreadable file starts an empty store.
func Open(logger *log.Logger, path string) *Store {
	if logger == nil {
		panic("DeviceStore: logger cannot be nil")
	}
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{filePath: path, logger: logger}
	s.load()
	return s
}

func key(address string) string {
	return strings.ToUpper(address)
}

func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) load() {
	s.data = storeData{
		Devices:                     make(map[string]Device),
		PreferredDeviceByDeviceType: make(map[gatt.DeviceTypeID]string),
	}
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		s.logger.Printf("DeviceStore: load %s (no existing file)", s.filePath)
		return
	}
	var loaded storeData
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.logger.Printf("DeviceStore: load %s failed to parse: %v", s.filePath, err)
		return
	}
	for _, d := range loaded.Devices {
		s.data.Devices[key(d.Address)] = d
	}
	for id, addr := range loaded.PreferredDeviceByDeviceType {
		s.data.PreferredDeviceByDeviceType[id] = addr
	}
	s.logger.Printf("DeviceStore: loaded %d devices from %s", len(s.data.Devices), s.filePath)
}

// save writes the file. Callers hold mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if err := os.WriteFile(s.filePath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.filePath, err)
	}
	return nil
}

func (s *Store) Get(address string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data.Devices[key(address)]
	return d, ok
}

// Remember records a sighting, keeping a previously stored system ID.
func (s *Store) Remember(address, name string, types []gatt.DeviceTypeID, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data.Devices[key(address)]
	d.Address = address
	if name != "" {
		d.Name = name
	}
	if len(types) > 0 {
		d.DeviceTypes = slices.Clone(types)
	}
	d.LastSeen = seen
	s.data.Devices[key(address)] = d
	return s.save()
}

// SetSystemID stores the system ID of a known or new device.
func (s *Store) SetSystemID(address string, sid []byte) error {
	if err := kinetic.ValidateSystemID(sid); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data.Devices[key(address)]
	d.Address = address
	d.SystemID = kinetic.FormatSystemID(sid)
	s.data.Devices[key(address)] = d
	s.logger.Printf("DeviceStore: system ID of %s is %s", address, d.SystemID)
	return s.save()
}

// SystemID returns the stored system ID of address.
func (s *Store) SystemID(address string) ([]byte, bool) {
	d, ok := s.Get(address)
	if !ok || d.SystemID == "" {
		return nil, false
	}
	sid, err := kinetic.ParseSystemID(d.SystemID)
	if err != nil {
		s.logger.Printf("DeviceStore: bad system ID for %s: %v", address, err)
		return nil, false
	}
	return sid, true
}

func (s *Store) PreferredDevice(typeID gatt.DeviceTypeID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.PreferredDeviceByDeviceType[typeID]
}

func (s *Store) SetPreferredDevice(typeID gatt.DeviceTypeID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Printf("DeviceStore: preferred %s -> %q", typeID, address)
	s.data.PreferredDeviceByDeviceType[typeID] = address
	return s.save()
}

// Forget removes a device and any preference pointing at it.
func (s *Store) Forget(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Devices, key(address))
	for id, addr := range s.data.PreferredDeviceByDeviceType {
		if strings.EqualFold(addr, address) {
			delete(s.data.PreferredDeviceByDeviceType, id)
		}
	}
	return s.save()
}

// List returns every device, most recently seen first.
func (s *Store) List() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]Device, 0, len(s.data.Devices))
	for _, d := range s.data.Devices {
		devices = append(devices, d)
	}
	slices.SortFunc(devices, func(a, b Device) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return strings.Compare(a.Address, b.Address)
	})
	return devices
}
