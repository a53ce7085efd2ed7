package ldapgen

import "testing"

func TestDirectoryDN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"example.com/A/B", "OU=B,OU=A,DC=example,DC=com"},
		{"example.com/Servers", "OU=Servers,DC=example,DC=com"},
		{"corp.example.com/IT/Linux/Proxmox", "OU=Proxmox,OU=Linux,OU=IT,DC=corp,DC=example,DC=com"},
		{"example.com", "DC=example,DC=com"},
		{"example.com/A/B/", "OU=B,OU=A,DC=example,DC=com"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DirectoryDN(tt.path)
			if err != nil {
				t.Fatalf("DirectoryDN(%q) error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("DirectoryDN(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGroupDN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"example.com/A/B", "CN=B,OU=A,DC=example,DC=com"},
		{"example.com/Admins", "CN=Admins,DC=example,DC=com"},
		{"corp.example.com/IT/Linux/pve-admins", "CN=pve-admins,OU=Linux,OU=IT,DC=corp,DC=example,DC=com"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := GroupDN(tt.path)
			if err != nil {
				t.Fatalf("GroupDN(%q) error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("GroupDN(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGroupDNRequiresObject(t *testing.T) {
	if _, err := GroupDN("example.com"); err == nil {
		t.Error("expected error for a path with no segment below the domain")
	}
}

func TestDNBadPaths(t *testing.T) {
	for _, path := range []string{"", "nodomain/A", "example.com//B"} {
		t.Run(path, func(t *testing.T) {
			if _, err := DirectoryDN(path); err == nil {
				t.Errorf("DirectoryDN(%q) expected error", path)
			}
		})
	}
}

func TestEscapeDN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith, John", `Smith\, John`},
		{"a+b", `a\+b`},
		{"#lead", `\#lead`},
		{"not#lead", "not#lead"},
		{" padded ", `\ padded\ `},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := escapeDN(tt.in); got != tt.want {
			t.Errorf("escapeDN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirectoryDNEscapesSegments(t *testing.T) {
	got, err := DirectoryDN("example.com/Smith, John")
	if err != nil {
		t.Fatalf("DirectoryDN error: %v", err)
	}
	if got != `OU=Smith\, John,DC=example,DC=com` {
		t.Errorf("DirectoryDN = %q", got)
	}
}

func TestDecodeAttribute(t *testing.T) {
	got, err := DecodeAttribute("T1U9QixPVT1BLERDPWV4YW1wbGUsREM9Y29t")
	if err != nil {
		t.Fatalf("DecodeAttribute error: %v", err)
	}
	if got != "OU=B,OU=A,DC=example,DC=com" {
		t.Errorf("DecodeAttribute = %q", got)
	}

	if _, err := DecodeAttribute("not!!base64"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecodeAttribute("/w=="); err == nil {
		t.Error("expected error for non-UTF-8 payload")
	}
}
