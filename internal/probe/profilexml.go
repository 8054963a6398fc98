package probe

import (
	"context"
	"encoding/xml"
	"os"
)

// WLANProfileNamespace is the schema for exported wireless profiles.
const WLANProfileNamespace = "http://www.microsoft.com/networking/WLAN/profile/v1"

// wlanProfile is the WPA2-PSK subset of the WLAN_profile schema. The key
// is written as a clear passphrase; the system encrypts it on import.
type wlanProfile struct {
	XMLName        xml.Name   `xml:"WLANProfile"`
	Xmlns          string     `xml:"xmlns,attr"`
	Name           string     `xml:"name"`
	SSIDConfig     ssidConfig `xml:"SSIDConfig"`
	ConnectionType string     `xml:"connectionType"`
	ConnectionMode string     `xml:"connectionMode"`
	MSM            msmConfig  `xml:"MSM"`
}

type ssidConfig struct {
	SSID ssidName `xml:"SSID"`
}

type ssidName struct {
	Name string `xml:"name"`
}

type msmConfig struct {
	Security securityConfig `xml:"security"`
}

type securityConfig struct {
	AuthEncryption authEncryption `xml:"authEncryption"`
	SharedKey      sharedKey      `xml:"sharedKey"`
}

type authEncryption struct {
	Authentication string `xml:"authentication"`
	Encryption     string `xml:"encryption"`
	UseOneX        bool   `xml:"useOneX"`
}

type sharedKey struct {
	KeyType     string `xml:"keyType"`
	Protected   bool   `xml:"protected"`
	KeyMaterial string `xml:"keyMaterial"`
}

// buildProfileXML renders the import document for an infrastructure
// WPA2-PSK network with auto-connect.
func buildProfileXML(ssid, password string) ([]byte, error) {
	profile := wlanProfile{
		Xmlns:          WLANProfileNamespace,
		Name:           ssid,
		SSIDConfig:     ssidConfig{SSID: ssidName{Name: ssid}},
		ConnectionType: "ESS",
		ConnectionMode: "auto",
		MSM: msmConfig{
			Security: securityConfig{
				AuthEncryption: authEncryption{
					Authentication: "WPA2PSK",
					Encryption:     "AES",
					UseOneX:        false,
				},
				SharedKey: sharedKey{
					KeyType:     "passPhrase",
					Protected:   false,
					KeyMaterial: password,
				},
			},
		},
	}
	body, err := xml.MarshalIndent(profile, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// createProfile imports a wireless profile for the given network through
// a temporary XML file, which is removed once imported.
func (p *Prober) createProfile(ctx context.Context, ssid, password string) bool {
	if ssid == "" || password == "" {
		p.log.Errorf(logTag, "Wi-Fi credentials are required to create a profile")
		return false
	}

	data, err := buildProfileXML(ssid, password)
	if err != nil {
		p.log.Errorf(logTag, "Rendering profile for %q failed: %v", ssid, err)
		return false
	}

	f, err := os.CreateTemp("", "wlan-profile-*.xml")
	if err != nil {
		p.log.Errorf(logTag, "Creating temporary profile file failed: %v", err)
		return false
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		p.log.Errorf(logTag, "Writing profile file failed: %v", err)
		return false
	}
	if err := f.Close(); err != nil {
		p.log.Errorf(logTag, "Closing profile file failed: %v", err)
		return false
	}

	if _, err := p.runner.Run(ctx, "netsh", "wlan", "add", "profile", "filename="+path); err != nil {
		p.log.Errorf(logTag, "Importing profile for %q failed: %v", ssid, err)
		return false
	}
	p.log.Infof(logTag, "Wi-Fi profile created for %s", ssid)
	return true
}
