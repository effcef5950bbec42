package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/security"
)

var fastParams = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("recharge-2024", fastParams)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	ok, err := security.VerifyPassword("recharge-2024", hash)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = security.VerifyPassword("recharge-2025", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for wrong password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword accepted the wrong password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
	} {
		if _, err := security.VerifyPassword("irrelevant", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestParamsFromConfigClamps(t *testing.T) {
	params := security.ParamsFromConfig(config.PasswordConfig{ArgonMemoryKB: 1, ArgonTime: 99, ArgonParallelism: 0})
	if params.Memory != 8 || params.Time != 10 || params.Parallelism != 1 {
		t.Fatalf("unexpected clamped params %+v", params)
	}
	if params.SaltLen != 8 || params.KeyLen != 16 {
		t.Fatalf("unexpected clamped lengths %+v", params)
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	cases := map[string]bool{
		"short1":      false,
		"onlyletters": false,
		"1234567890":  false,
		"plan4ever":   true,
	}
	for password, ok := range cases {
		err := security.CheckPasswordPolicy(password)
		if ok && err != nil {
			t.Fatalf("%q: unexpected error %v", password, err)
		}
		if !ok && err == nil {
			t.Fatalf("%q: expected policy error", password)
		}
	}
}
