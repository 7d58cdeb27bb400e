package nudge

import (
	"strconv"
	"strings"
)

// Template is a message with its subcopy. The two are always chosen together.
type Template struct {
	Message string
	Subcopy string
}

// fallbackLocation fills {location} when the place name is unknown.
const fallbackLocation = "burada"

var defaultTemplates = map[Type][]Template{
	TypeCoffeeBreak: {
		{"☕ Kahve molası zamanı!", "{place_name}'de birkaç kişi var şu an"},
		{"☕ Bir kahve ne dersin?", "{place_name} şu an sakin"},
		{"☕ Kafein takviyesi?", "{place_name}'e yakınsın zaten"},
	},
	TypeExploreNearby: {
		{"🧭 Çevreyi keşfet", "{place_name}'de hiç bulunmamışsın"},
		{"🧭 Yeni bir yer dene", "{place_name} yakında ve popüler"},
		{"🧭 Adım at", "{place_name} ilgini çekebilir"},
	},
	TypeMatchProximity: {
		{"💫 Birisi yakında", "Senin gibi düşünen biri {distance}m mesafede"},
		{"💫 İlginç bir tesadüf", "{count} uyumlu kişi yakında"},
		{"💫 Fırsat bu fırsat", "Tam senlik birisi {distance}m ötede"},
	},
	TypeSocialPrompt: {
		{"🎭 Sosyalleşme zamanı", "{place_name}'de tanıdık atmosfer var"},
		{"🎭 Dışarı çık", "Hava güzel, insanlar dışarıda"},
	},
	TypeQuestion: {
		{"🤔 Sana soru", "Hangi müzik türünü seversin?"},
		{"🤔 Merak ettik", "{location}'deyken genelde ne yaparsın?"},
	},
}

// Templates returns a copy of the catalogue for one nudge type.
func Templates(t Type) []Template {
	return append([]Template(nil), defaultTemplates[t]...)
}

// vars holds placeholder values; unset ones are left untouched in the text.
type vars map[string]string

func placeName(name string) vars { return vars{"place_name": name} }

func proximityVars(distanceMeters float64, count int) vars {
	return vars{
		"distance": strconv.Itoa(int(distanceMeters)),
		"count":    strconv.Itoa(count),
	}
}

func (v vars) format(text string) string {
	if len(v) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(v))
	for k, val := range v {
		pairs = append(pairs, "{"+k+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
