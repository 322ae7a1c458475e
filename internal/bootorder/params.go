package bootorder

import (
	"io"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultOrganization = "default"
	defaultSubtype      = "None"
	defaultIPType       = "None"
	defaultIfaceSource  = "name"
)

var (
	policyNameRE   = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,62}$`)
	deviceNameRE   = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,28}[a-zA-Z0-9])?$`)
	controllerRE   = regexp.MustCompile(`^(M|HBA|SAS|RAID|MRAID|MSTOR-RAID|[1-9][0-9]?|1[0-9][0-9]|2[0-4][0-9]|25[0-5])$`)
	paramsValidate = newValidator()
)

// Parameters are the user supplied inputs describing a boot order policy.
//
// Fields irrelevant to a boot device's type are accepted and ignored when the
// request body is built.
// nolint:govet // prefer readability over field alignment optimization for this case.
type Parameters struct {
	State                model.State        `yaml:"state" json:"state" validate:"oneof=present absent"`
	Organization         string             `yaml:"organization" json:"organization" validate:"required"`
	Name                 string             `yaml:"name" json:"name" validate:"required,policy_name"`
	Description          string             `yaml:"description" json:"description" validate:"max=1024"`
	Descr                string             `yaml:"descr" json:"descr"`
	Tags                 []Tag              `yaml:"tags" json:"tags" validate:"dive"`
	ConfiguredBootMode   BootMode           `yaml:"configured_boot_mode" json:"configured_boot_mode" validate:"oneof=Legacy Uefi"`
	UefiEnableSecureBoot bool               `yaml:"uefi_enable_secure_boot" json:"uefi_enable_secure_boot"`
	BootDevices          []DeviceParameters `yaml:"boot_devices" json:"boot_devices" validate:"dive"`
}

// Tag is a user defined key/value pair attached to the policy.
type Tag struct {
	Key   string `yaml:"Key" json:"Key" validate:"required,max=128"`
	Value string `yaml:"Value" json:"Value" validate:"max=256"`
}

// DeviceParameters describe one entry of the boot order.
// nolint:govet // prefer readability over field alignment optimization for this case.
type DeviceParameters struct {
	Enabled    *bool      `yaml:"enabled" json:"enabled"`
	DeviceType DeviceKind `yaml:"device_type" json:"device_type" validate:"required,device_kind"`
	DeviceName string     `yaml:"device_name" json:"device_name" validate:"required,device_name"`

	// iscsi, pxe and san
	NetworkSlot string `yaml:"network_slot" json:"network_slot"`
	Port        int    `yaml:"port" json:"port" validate:"min=-1,max=255"`

	// local disk
	ControllerSlot string `yaml:"controller_slot" json:"controller_slot" validate:"omitempty,controller_slot"`

	// disk backed devices
	BootloaderName        string `yaml:"bootloader_name" json:"bootloader_name"`
	BootloaderDescription string `yaml:"bootloader_description" json:"bootloader_description"`
	BootloaderPath        string `yaml:"bootloader_path" json:"bootloader_path"`
	Lun                   int    `yaml:"lun" json:"lun" validate:"min=0,max=255"`

	// pxe
	IPType          string `yaml:"ip_type" json:"ip_type" validate:"oneof=None IPv4 IPv6"`
	InterfaceSource string `yaml:"interface_source" json:"interface_source" validate:"oneof=name mac port"`
	InterfaceName   string `yaml:"interface_name" json:"interface_name"`
	MacAddress      string `yaml:"mac_address" json:"mac_address" validate:"omitempty,mac"`

	Subtype             string `yaml:"subtype" json:"subtype" validate:"oneof=None usb-cd usb-fdd usb-hdd"`
	SdCardSubtype       string `yaml:"sd_card_subtype" json:"sd_card_subtype" validate:"oneof=None flex-util flex-flash SDCARD"`
	VirtualMediaSubtype string `yaml:"virtual_media_subtype" json:"virtual_media_subtype" validate:"oneof=None cimc-mapped-dvd cimc-mapped-hdd kvm-mapped-dvd kvm-mapped-hdd kvm-mapped-fdd"`
}

// LoadParameters decodes policy parameters from a YAML (or JSON) document.
// Unknown keys are rejected.
func LoadParameters(r io.Reader) (*Parameters, error) {
	params := &Parameters{}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(params); err != nil {
		return nil, errors.Wrap(model.ErrValidation, "decode error: "+err.Error())
	}

	return params, nil
}

// SetDefaults fills in the defaults for unset optional parameters.
func (p *Parameters) SetDefaults() {
	if p.State == "" {
		p.State = model.StatePresent
	}

	if p.Organization == "" {
		p.Organization = defaultOrganization
	}

	if p.Description == "" {
		p.Description = p.Descr
	}

	if p.ConfiguredBootMode == "" {
		p.ConfiguredBootMode = BootModeLegacy
	}

	if p.Tags == nil {
		p.Tags = []Tag{}
	}

	for i := range p.BootDevices {
		p.BootDevices[i].setDefaults()
	}
}

func (d *DeviceParameters) setDefaults() {
	if d.Enabled == nil {
		enabled := true
		d.Enabled = &enabled
	}

	if d.IPType == "" {
		d.IPType = defaultIPType
	}

	if d.InterfaceSource == "" {
		d.InterfaceSource = defaultIfaceSource
	}

	if d.Subtype == "" {
		d.Subtype = defaultSubtype
	}

	if d.SdCardSubtype == "" {
		d.SdCardSubtype = defaultSubtype
	}

	if d.VirtualMediaSubtype == "" {
		d.VirtualMediaSubtype = defaultSubtype
	}
}

// Normalized returns a copy of the parameters with defaults applied, checked
// against the schema. p is left unchanged.
func (p *Parameters) Normalized() (*Parameters, error) {
	copied, err := copystructure.Copy(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy parameters")
	}

	params, ok := copied.(*Parameters)
	if !ok {
		return nil, errors.New("unexpected parameters copy type")
	}

	params.SetDefaults()

	if err := paramsValidate.Struct(params); err != nil {
		return nil, errors.Wrap(model.ErrValidation, err.Error())
	}

	return params, nil
}

// Validate checks the parameters, with defaults applied, against the schema.
func (p *Parameters) Validate() error {
	_, err := p.Normalized()
	return err
}

// Policy validates the parameters and converts them into a typed Policy.
func (p *Parameters) Policy() (*Policy, error) {
	params, err := p.Normalized()
	if err != nil {
		return nil, err
	}

	policy := &Policy{
		Organization:         params.Organization,
		Name:                 params.Name,
		Description:          params.Description,
		Tags:                 append([]Tag{}, params.Tags...),
		ConfiguredBootMode:   params.ConfiguredBootMode,
		UefiEnableSecureBoot: params.UefiEnableSecureBoot,
		BootDevices:          make([]BootDevice, 0, len(params.BootDevices)),
	}

	for i := range params.BootDevices {
		device, err := NewBootDevice(&params.BootDevices[i])
		if err != nil {
			return nil, errors.Wrapf(err, "boot_devices[%d]", i)
		}

		policy.BootDevices = append(policy.BootDevices, device)
	}

	return policy, nil
}

func (p *Parameters) AsLogFields() []any {
	return []any{
		"state", p.State,
		"organization", p.Organization,
		"name", p.Name,
		"bootMode", p.ConfiguredBootMode,
		"bootDevices", len(p.BootDevices),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	regexRule := func(re *regexp.Regexp) validator.Func {
		return func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}
	}

	rules := map[string]validator.Func{
		"policy_name":     regexRule(policyNameRE),
		"device_name":     regexRule(deviceNameRE),
		"controller_slot": regexRule(controllerRE),
		"device_kind": func(fl validator.FieldLevel) bool {
			_, ok := deviceConstructors[DeviceKind(fl.Field().String())]
			return ok
		},
	}

	for tag, fn := range rules {
		// only fails on an empty tag or a nil func
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}

	return v
}
