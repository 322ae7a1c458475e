package bootorder

import (
	"github.com/metal-toolbox/bootorder/internal/model"
)

// BootMode is the BIOS boot mode configured by the policy.
type BootMode string

const (
	BootModeLegacy BootMode = "Legacy"
	BootModeUefi   BootMode = "Uefi"
)

// Policy is a validated boot order policy.
type Policy struct {
	Organization         string
	Name                 string
	Description          string
	Tags                 []Tag
	ConfiguredBootMode   BootMode
	UefiEnableSecureBoot bool
	BootDevices          []BootDevice
}

// Build maps the policy to the request body expected by Intersight.
//
// The organization is referenced by name, which is how the body is compared
// against a fetched policy expanded with its Organization.
func Build(p *Policy) model.Document {
	tags := make([]any, 0, len(p.Tags))
	for _, tag := range p.Tags {
		tags = append(tags, model.Document{"Key": tag.Key, "Value": tag.Value})
	}

	devices := make([]any, 0, len(p.BootDevices))
	for _, device := range p.BootDevices {
		devices = append(devices, deviceDocument(device))
	}

	return model.Document{
		"Organization": model.Document{
			"Name": p.Organization,
		},
		"Name":                  p.Name,
		"Tags":                  tags,
		"Description":           p.Description,
		"ConfiguredBootMode":    string(p.ConfiguredBootMode),
		"EnforceUefiSecureBoot": p.UefiEnableSecureBoot,
		"BootDevices":           devices,
	}
}

func deviceDocument(device BootDevice) model.Document {
	common := device.common()

	doc := model.Document{
		"ClassId":    device.ClassID(),
		"ObjectType": device.ClassID(),
		"Enabled":    common.Enabled,
		"Name":       common.Name,
	}

	device.fields(doc)

	return doc
}
