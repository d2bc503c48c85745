package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedLocales(t *testing.T) {
	m := Default()

	assert.Equal(t, []string{"en", "ko"}, m.Languages())
	assert.Equal(t, "학습", m.Translator("ko").T("category.major.STUDY"))
	assert.Equal(t, "Study", m.Translator("en").T("category.major.STUDY"))
}

func TestNegotiate(t *testing.T) {
	m := Default()

	cases := map[string]string{
		"":                         "ko",
		"en-US,en;q=0.9":           "en",
		"ko-KR,ko;q=0.9,en;q=0.8":  "ko",
		"fr-FR,fr;q=0.9":           "ko",
		"de-DE":                    "ko",
		"fr;q=0.9, en-GB;q=0.8":    "en",
		"this is not a header;;;=": "ko",
	}

	for header, want := range cases {
		assert.Equal(t, want, m.Negotiate(header).Lang(), header)
	}
}

func TestTranslator_FallsBackToDefaultThenKey(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/ko.yaml": {Data: []byte("ko:\n  greeting: 안녕하세요\n  nested:\n    only_ko: 한국어\n")},
		"locales/en.yaml": {Data: []byte("en:\n  greeting: Hello\n")},
	}

	m, err := LoadFS(fsys, "locales", "ko")
	require.NoError(t, err)

	en := m.Translator("en")
	assert.Equal(t, "Hello", en.T("greeting"))
	assert.Equal(t, "한국어", en.T("nested.only_ko"))
	assert.Equal(t, "missing.key", en.T("missing.key"))
	assert.Equal(t, "ko", m.Translator("de").Lang())
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"locales/readme.txt": {Data: []byte("x")}}, "locales", "ko")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"locales/en.yaml": {Data: []byte("en:\n  a: b\n")}}, "locales", "ko")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"locales/ko.yaml": {Data: []byte("ko: [")}}, "locales", "ko")
	assert.Error(t, err)
}
