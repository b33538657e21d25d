package hashutil

import "testing"

func TestComputeHex(t *testing.T) {
	tests := []struct {
		algorithm string
		message   string
		want      string
	}{
		{
			algorithm: "sha256",
			message:   "abc",
			want:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			algorithm: "sha512",
			message:   "abc",
			want: "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
				"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		},
		{
			algorithm: "sha3-256",
			message:   "abc",
			want:      "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
		},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			got, err := ComputeHex(tt.algorithm, []byte(tt.message))
			if err != nil {
				t.Fatalf("ComputeHex() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputeHex() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	if Supported("md5") {
		t.Error("md5 should not be supported")
	}
	if _, err := ComputeHex("md5", []byte("abc")); err == nil {
		t.Error("expected error for md5")
	}
}

func TestVerifyHex(t *testing.T) {
	const digest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	ok, err := VerifyHex("sha256", digest, []byte("abc"))
	if err != nil {
		t.Fatalf("VerifyHex() error = %v", err)
	}
	if !ok {
		t.Error("expected digest to verify")
	}

	ok, err = VerifyHex("sha256", digest, []byte("abd"))
	if err != nil {
		t.Fatalf("VerifyHex() error = %v", err)
	}
	if ok {
		t.Error("expected mismatched digest to fail")
	}
}
