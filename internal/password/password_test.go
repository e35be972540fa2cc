package password

import "testing"

func TestHashAndMatch(t *testing.T) {
	hash, err := Hash("secret-phrase")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash() вернул пустой хэш")
	}
	if hash == "secret-phrase" {
		t.Fatal("Hash() вернул пароль открытым текстом")
	}

	if !Match(hash, "secret-phrase") {
		t.Error("Match() = false для корректного пароля")
	}
	if Match(hash, "wrong-phrase") {
		t.Error("Match() = true для неверного пароля")
	}
	if Match(hash, "") {
		t.Error("Match() = true для пустого кандидата")
	}
}

func TestMatch_UnprotectedAlwaysFalse(t *testing.T) {
	// Сессия без пароля: совпадение невозможно, даже с пустым кандидатом
	if Match("", "") {
		t.Error("Match(\"\", \"\") = true, для незащищённой сессии ожидается false")
	}
	if Match("", "anything") {
		t.Error("Match(\"\", \"anything\") = true, для незащищённой сессии ожидается false")
	}
}

func TestHash_DistinctSalts(t *testing.T) {
	h1, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}
	h2, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}
	if h1 == h2 {
		t.Error("два хэша одного пароля совпали, ожидается разная соль")
	}
}
