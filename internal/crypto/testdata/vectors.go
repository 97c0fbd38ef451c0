package testdata

// TestVector is an input set for round-trip checks.
type TestVector struct {
	Name      string
	Password  string
	Salt      string // Hex, 32 bytes
	Plaintext string
}

// Vectors cover ASCII, unicode and empty payloads.
var Vectors = []TestVector{
	{
		Name:      "vault document",
		Password:  "correct horse battery staple",
		Salt:      "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		Plaintext: `{"schema_version":2,"passwords":[],"notes":[],"categories":[]}`,
	},
	{
		Name:      "unicode password",
		Password:  "пароль-密码-🔑",
		Salt:      "a0a1a2a3a4a5a6a7a8a9aaabacadaeafb0b1b2b3b4b5b6b7b8b9babbbcbdbebf",
		Plaintext: "Hello, 世界! 🌍",
	},
	{
		Name:      "block aligned payload",
		Password:  "p",
		Salt:      "ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100",
		Plaintext: "0123456789abcdef",
	},
	{
		Name:      "empty payload",
		Password:  "empty",
		Salt:      "1111111111111111111111111111111111111111111111111111111111111111",
		Plaintext: "",
	},
}
