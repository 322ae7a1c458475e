package bootorder

import (
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/pkg/errors"
)

// DeviceKind is the device_type tag of a boot device.
type DeviceKind string

const (
	KindIscsi        DeviceKind = "iscsi"
	KindLocalCdd     DeviceKind = "local_cdd"
	KindLocalDisk    DeviceKind = "local_disk"
	KindNvme         DeviceKind = "nvme"
	KindPchStorage   DeviceKind = "pch_storage"
	KindPxe          DeviceKind = "pxe"
	KindSan          DeviceKind = "san"
	KindSdCard       DeviceKind = "sd_card"
	KindUefiShell    DeviceKind = "uefi_shell"
	KindUsb          DeviceKind = "usb"
	KindVirtualMedia DeviceKind = "virtual_media"
)

const bootloaderClassID = "boot.Bootloader"

var (
	ErrUnknownDeviceKind = errors.New("unknown boot device type")

	// deviceConstructors maps every device tag to the constructor of its variant.
	deviceConstructors = map[DeviceKind]func(*DeviceParameters) BootDevice{
		KindIscsi: func(p *DeviceParameters) BootDevice {
			return NewIscsi(p.common(), p.NetworkSlot, p.Port)
		},
		KindLocalCdd: func(p *DeviceParameters) BootDevice {
			return NewLocalCdd(p.common())
		},
		KindLocalDisk: func(p *DeviceParameters) BootDevice {
			return NewLocalDisk(p.common(), p.ControllerSlot, p.bootloader())
		},
		KindNvme: func(p *DeviceParameters) BootDevice {
			return NewNvme(p.common(), p.bootloader())
		},
		KindPchStorage: func(p *DeviceParameters) BootDevice {
			return NewPchStorage(p.common(), p.Lun, p.bootloader())
		},
		KindPxe: func(p *DeviceParameters) BootDevice {
			return NewPxe(p.common(), PxeInterface{
				IPType:          p.IPType,
				InterfaceSource: p.InterfaceSource,
				Slot:            p.NetworkSlot,
				InterfaceName:   p.InterfaceName,
				Port:            p.Port,
				MacAddress:      p.MacAddress,
			})
		},
		KindSan: func(p *DeviceParameters) BootDevice {
			return NewSan(p.common(), p.NetworkSlot, p.Lun, p.bootloader())
		},
		KindSdCard: func(p *DeviceParameters) BootDevice {
			return NewSdCard(p.common(), p.SdCardSubtype, p.Lun, p.bootloader())
		},
		KindUefiShell: func(p *DeviceParameters) BootDevice {
			return NewUefiShell(p.common())
		},
		KindUsb: func(p *DeviceParameters) BootDevice {
			return NewUsb(p.common(), p.Subtype)
		},
		KindVirtualMedia: func(p *DeviceParameters) BootDevice {
			return NewVirtualMedia(p.common(), p.VirtualMediaSubtype)
		},
	}
)

// BootDevice is one entry of the boot order. The set of implementations is
// closed, one per DeviceKind.
type BootDevice interface {
	Kind() DeviceKind
	// ClassID is the Intersight ClassId/ObjectType of the device.
	ClassID() string
	common() Device
	fields(doc model.Document)
}

// NewBootDevice builds the variant for the parameters' device type.
func NewBootDevice(p *DeviceParameters) (BootDevice, error) {
	constructor, ok := deviceConstructors[p.DeviceType]
	if !ok {
		return nil, errors.Wrap(ErrUnknownDeviceKind, string(p.DeviceType))
	}

	return constructor(p), nil
}

func (p *DeviceParameters) common() Device {
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}

	return Device{Name: p.DeviceName, Enabled: enabled}
}

func (p *DeviceParameters) bootloader() Bootloader {
	return Bootloader{
		Name:        p.BootloaderName,
		Description: p.BootloaderDescription,
		Path:        p.BootloaderPath,
	}
}

// Device holds the fields shared by every boot device.
type Device struct {
	Name    string
	Enabled bool
}

func (d Device) common() Device { return d }

// Bootloader is the bootloader used by disk backed devices.
type Bootloader struct {
	Name        string
	Description string
	Path        string
}

func (b Bootloader) document() model.Document {
	return model.Document{
		"ClassId":     bootloaderClassID,
		"ObjectType":  bootloaderClassID,
		"Name":        b.Name,
		"Description": b.Description,
		"Path":        b.Path,
	}
}

type Iscsi struct {
	Device
	Slot string
	Port int
}

func NewIscsi(d Device, slot string, port int) *Iscsi {
	return &Iscsi{Device: d, Slot: slot, Port: port}
}

func (*Iscsi) Kind() DeviceKind { return KindIscsi }
func (*Iscsi) ClassID() string  { return "boot.Iscsi" }

func (i *Iscsi) fields(doc model.Document) {
	doc["Slot"] = i.Slot
	doc["Port"] = i.Port
}

type LocalCdd struct {
	Device
}

func NewLocalCdd(d Device) *LocalCdd {
	return &LocalCdd{Device: d}
}

func (*LocalCdd) Kind() DeviceKind { return KindLocalCdd }
func (*LocalCdd) ClassID() string  { return "boot.LocalCDD" }

func (*LocalCdd) fields(_ model.Document) {}

type LocalDisk struct {
	Device
	Slot       string
	Bootloader Bootloader
}

func NewLocalDisk(d Device, controllerSlot string, bl Bootloader) *LocalDisk {
	return &LocalDisk{Device: d, Slot: controllerSlot, Bootloader: bl}
}

func (*LocalDisk) Kind() DeviceKind { return KindLocalDisk }
func (*LocalDisk) ClassID() string  { return "boot.LocalDisk" }

func (l *LocalDisk) fields(doc model.Document) {
	doc["Slot"] = l.Slot
	doc["Bootloader"] = l.Bootloader.document()
}

type Nvme struct {
	Device
	Bootloader Bootloader
}

func NewNvme(d Device, bl Bootloader) *Nvme {
	return &Nvme{Device: d, Bootloader: bl}
}

func (*Nvme) Kind() DeviceKind { return KindNvme }
func (*Nvme) ClassID() string  { return "boot.NVMe" }

func (n *Nvme) fields(doc model.Document) {
	doc["Bootloader"] = n.Bootloader.document()
}

type PchStorage struct {
	Device
	Lun        int
	Bootloader Bootloader
}

func NewPchStorage(d Device, lun int, bl Bootloader) *PchStorage {
	return &PchStorage{Device: d, Lun: lun, Bootloader: bl}
}

func (*PchStorage) Kind() DeviceKind { return KindPchStorage }
func (*PchStorage) ClassID() string  { return "boot.PchStorage" }

func (p *PchStorage) fields(doc model.Document) {
	doc["Bootloader"] = p.Bootloader.document()
	doc["Lun"] = p.Lun
}

// PxeInterface identifies the network interface a PXE device boots from.
type PxeInterface struct {
	IPType          string
	InterfaceSource string
	Slot            string
	InterfaceName   string
	Port            int
	MacAddress      string
}

type Pxe struct {
	Device
	PxeInterface
}

func NewPxe(d Device, iface PxeInterface) *Pxe {
	return &Pxe{Device: d, PxeInterface: iface}
}

func (*Pxe) Kind() DeviceKind { return KindPxe }
func (*Pxe) ClassID() string  { return "boot.Pxe" }

func (p *Pxe) fields(doc model.Document) {
	doc["IpType"] = p.IPType
	doc["InterfaceSource"] = p.InterfaceSource
	doc["Slot"] = p.Slot
	doc["InterfaceName"] = p.InterfaceName
	doc["Port"] = p.Port
	doc["MacAddress"] = p.MacAddress
}

type San struct {
	Device
	Slot       string
	Lun        int
	Bootloader Bootloader
}

func NewSan(d Device, slot string, lun int, bl Bootloader) *San {
	return &San{Device: d, Slot: slot, Lun: lun, Bootloader: bl}
}

func (*San) Kind() DeviceKind { return KindSan }
func (*San) ClassID() string  { return "boot.San" }

func (s *San) fields(doc model.Document) {
	doc["Lun"] = s.Lun
	doc["Slot"] = s.Slot
	doc["Bootloader"] = s.Bootloader.document()
}

type SdCard struct {
	Device
	SubType    string
	Lun        int
	Bootloader Bootloader
}

func NewSdCard(d Device, subType string, lun int, bl Bootloader) *SdCard {
	return &SdCard{Device: d, SubType: subType, Lun: lun, Bootloader: bl}
}

func (*SdCard) Kind() DeviceKind { return KindSdCard }
func (*SdCard) ClassID() string  { return "boot.SdCard" }

func (s *SdCard) fields(doc model.Document) {
	doc["Lun"] = s.Lun
	doc["SubType"] = s.SubType
	doc["Bootloader"] = s.Bootloader.document()
}

type UefiShell struct {
	Device
}

func NewUefiShell(d Device) *UefiShell {
	return &UefiShell{Device: d}
}

func (*UefiShell) Kind() DeviceKind { return KindUefiShell }
func (*UefiShell) ClassID() string  { return "boot.UefiShell" }

func (*UefiShell) fields(_ model.Document) {}

type Usb struct {
	Device
	SubType string
}

func NewUsb(d Device, subType string) *Usb {
	return &Usb{Device: d, SubType: subType}
}

func (*Usb) Kind() DeviceKind { return KindUsb }
func (*Usb) ClassID() string  { return "boot.Usb" }

func (u *Usb) fields(doc model.Document) {
	doc["SubType"] = u.SubType
}

type VirtualMedia struct {
	Device
	SubType string
}

func NewVirtualMedia(d Device, subType string) *VirtualMedia {
	return &VirtualMedia{Device: d, SubType: subType}
}

func (*VirtualMedia) Kind() DeviceKind { return KindVirtualMedia }
func (*VirtualMedia) ClassID() string  { return "boot.VirtualMedia" }

func (v *VirtualMedia) fields(doc model.Document) {
	doc["SubType"] = v.SubType
}
