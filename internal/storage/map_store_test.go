package storage

import "testing"

func TestValidMapName(t *testing.T) {
	valid := []string{
		"classic",
		"scattered-60",
		"Ruins_2",
		"a",
		"0map",
	}
	for _, name := range valid {
		if !ValidMapName(name) {
			t.Errorf("Имя %q должно быть допустимым", name)
		}
	}

	invalid := []string{
		"",
		"-leading",
		"_leading",
		"with space",
		"пирамида",
		"a/b",
		"..",
		"name.json",
		"0123456789012345678901234567890123456789012345678901234567890123456789", // 70 символов
	}
	for _, name := range invalid {
		if ValidMapName(name) {
			t.Errorf("Имя %q должно отклоняться", name)
		}
	}
}
