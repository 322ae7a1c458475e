package bootorder

import (
	"strings"
	"testing"

	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParameters(t *testing.T) {
	input := `
organization: DevNet
name: COS-Boot
descr: Boot Order policy for COS
tags:
  - Key: Site
    Value: RCDN
configured_boot_mode: Uefi
uefi_enable_secure_boot: true
boot_devices:
  - device_type: local_disk
    device_name: Boot-Lun
    controller_slot: MRAID
  - device_type: virtual_media
    device_name: kvm-dvd
    enabled: false
    virtual_media_subtype: kvm-mapped-dvd
`

	params, err := LoadParameters(strings.NewReader(input))
	require.NoError(t, err)

	params, err = params.Normalized()
	require.NoError(t, err)

	assert.Equal(t, model.StatePresent, params.State)
	assert.Equal(t, "DevNet", params.Organization)
	assert.Equal(t, "Boot Order policy for COS", params.Description)
	assert.Equal(t, BootModeUefi, params.ConfiguredBootMode)
	assert.True(t, params.UefiEnableSecureBoot)
	require.Len(t, params.BootDevices, 2)
	assert.True(t, *params.BootDevices[0].Enabled)
	assert.False(t, *params.BootDevices[1].Enabled)
	assert.Equal(t, "kvm-mapped-dvd", params.BootDevices[1].VirtualMediaSubtype)
}

func TestLoadParametersUnknownField(t *testing.T) {
	_, err := LoadParameters(strings.NewReader("name: x\nboot_order: []\n"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSetDefaults(t *testing.T) {
	params := &Parameters{
		Name:        "p",
		BootDevices: []DeviceParameters{{DeviceType: KindVirtualMedia, DeviceName: "vm"}},
	}
	params.SetDefaults()

	assert.Equal(t, model.StatePresent, params.State)
	assert.Equal(t, "default", params.Organization)
	assert.Equal(t, BootModeLegacy, params.ConfiguredBootMode)
	assert.NotNil(t, params.Tags)

	device := params.BootDevices[0]
	assert.True(t, *device.Enabled)
	assert.Equal(t, "None", device.VirtualMediaSubtype)
	assert.Equal(t, "None", device.Subtype)
	assert.Equal(t, "None", device.IPType)
	assert.Equal(t, "name", device.InterfaceSource)
}

func TestValidate(t *testing.T) {
	testcases := []struct {
		name    string
		mutate  func(p *Parameters)
		wantErr bool
	}{
		{"valid", func(_ *Parameters) {}, false},
		{"missing name", func(p *Parameters) { p.Name = "" }, true},
		{"name too long", func(p *Parameters) { p.Name = strings.Repeat("a", 63) }, true},
		{"name special chars", func(p *Parameters) { p.Name = "a:b-c_d.e" }, false},
		{"name invalid chars", func(p *Parameters) { p.Name = "boot policy" }, true},
		{"bad state", func(p *Parameters) { p.State = "gone" }, true},
		{"bad boot mode", func(p *Parameters) { p.ConfiguredBootMode = "legacy" }, true},
		{"description too long", func(p *Parameters) { p.Description = strings.Repeat("a", 1025) }, true},
		{"description punctuation", func(p *Parameters) { p.Description = "Boot order (COS), rack 4; see runbook" }, false},
		{"tag without key", func(p *Parameters) { p.Tags = []Tag{{Value: "x"}} }, true},
		{"device name too long", func(p *Parameters) { p.BootDevices[0].DeviceName = strings.Repeat("a", 31) }, true},
		{"device name bad bounds", func(p *Parameters) { p.BootDevices[0].DeviceName = "-boot" }, true},
		{"device name single char", func(p *Parameters) { p.BootDevices[0].DeviceName = "b" }, false},
		{"missing device name", func(p *Parameters) { p.BootDevices[0].DeviceName = "" }, true},
		{"unknown device type", func(p *Parameters) { p.BootDevices[0].DeviceType = "floppy" }, true},
		{"controller slot numeric", func(p *Parameters) { p.BootDevices[0].ControllerSlot = "255" }, false},
		{"controller slot out of range", func(p *Parameters) { p.BootDevices[0].ControllerSlot = "256" }, true},
		{"controller slot unknown", func(p *Parameters) { p.BootDevices[0].ControllerSlot = "NVME" }, true},
		{"port out of range", func(p *Parameters) { p.BootDevices[0].Port = 256 }, true},
		{"bad mac", func(p *Parameters) { p.BootDevices[0].MacAddress = "zz:zz" }, true},
		{"good mac", func(p *Parameters) { p.BootDevices[0].MacAddress = "00:25:b5:00:00:01" }, false},
		{"bad virtual media subtype", func(p *Parameters) { p.BootDevices[0].VirtualMediaSubtype = "iso" }, true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			params := cosBootParams()
			tc.mutate(params)

			err := params.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, model.ErrValidation)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestPolicyFromParameters(t *testing.T) {
	policy, err := cosBootParams().Policy()
	require.NoError(t, err)

	assert.Equal(t, "COS-Boot", policy.Name)
	assert.Equal(t, "default", policy.Organization)
	require.Len(t, policy.BootDevices, 1)

	disk, ok := policy.BootDevices[0].(*LocalDisk)
	require.True(t, ok)
	assert.Equal(t, "MRAID", disk.Slot)
	assert.True(t, disk.Enabled)
}

func TestNormalizedLeavesParametersUnchanged(t *testing.T) {
	params := &Parameters{
		Name:        "COS-Boot",
		BootDevices: []DeviceParameters{{DeviceType: KindPxe, DeviceName: "pxe"}},
	}

	normalized, err := params.Normalized()
	require.NoError(t, err)
	assert.Equal(t, model.StatePresent, normalized.State)
	assert.Equal(t, "default", normalized.Organization)
	assert.True(t, *normalized.BootDevices[0].Enabled)

	_, err = params.Policy()
	require.NoError(t, err)
	require.NoError(t, params.Validate())

	assert.Empty(t, params.State)
	assert.Empty(t, params.Organization)
	assert.Empty(t, params.ConfiguredBootMode)
	assert.Nil(t, params.Tags)
	assert.Nil(t, params.BootDevices[0].Enabled)
	assert.Empty(t, params.BootDevices[0].IPType)
}
