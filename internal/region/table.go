package region

// The static region catalog. Continent entries mirror the top-level mirror
// directories; country entries carry their parent continent.

func continent(name string) Info {
	return Info{Name: name, Kind: KindContinent}
}

func country(name, parent string) Info {
	return Info{Name: name, Kind: KindCountry, Continent: parent}
}

var regions = map[string]Info{
	"planet": {Name: "planet", Kind: KindPlanet},

	"africa":            continent("africa"),
	"asia":              continent("asia"),
	"australia-oceania": continent("australia-oceania"),
	"central-america":   continent("central-america"),
	"europe":            continent("europe"),
	"north-america":     continent("north-america"),
	"south-america":     continent("south-america"),

	"egypt":         country("egypt", "africa"),
	"morocco":       country("morocco", "africa"),
	"south-africa":  country("south-africa", "africa"),
	"nigeria":       country("nigeria", "africa"),
	"kenya":         country("kenya", "africa"),
	"china":         country("china", "asia"),
	"india":         country("india", "asia"),
	"indonesia":     country("indonesia", "asia"),
	"israel":        country("israel", "asia"),
	"japan":         country("japan", "asia"),
	"south-korea":   country("south-korea", "asia"),
	"taiwan":        country("taiwan", "asia"),
	"thailand":      country("thailand", "asia"),
	"turkey":        country("turkey", "asia"),
	"vietnam":       country("vietnam", "asia"),
	"australia":     country("australia", "australia-oceania"),
	"new-zealand":   country("new-zealand", "australia-oceania"),
	"costa-rica":    country("costa-rica", "central-america"),
	"cuba":          country("cuba", "central-america"),
	"guatemala":     country("guatemala", "central-america"),
	"nicaragua":     country("nicaragua", "central-america"),
	"panama":        country("panama", "central-america"),
	"austria":       country("austria", "europe"),
	"belgium":       country("belgium", "europe"),
	"czech-republic": country("czech-republic", "europe"),
	"denmark":       country("denmark", "europe"),
	"finland":       country("finland", "europe"),
	"france":        country("france", "europe"),
	"germany":       country("germany", "europe"),
	"great-britain": country("great-britain", "europe"),
	"greece":        country("greece", "europe"),
	"hungary":       country("hungary", "europe"),
	"ireland":       country("ireland", "europe"),
	"italy":         country("italy", "europe"),
	"monaco":        country("monaco", "europe"),
	"netherlands":   country("netherlands", "europe"),
	"norway":        country("norway", "europe"),
	"poland":        country("poland", "europe"),
	"portugal":      country("portugal", "europe"),
	"romania":       country("romania", "europe"),
	"spain":         country("spain", "europe"),
	"sweden":        country("sweden", "europe"),
	"switzerland":   country("switzerland", "europe"),
	"ukraine":       country("ukraine", "europe"),
	"canada":        country("canada", "north-america"),
	"mexico":        country("mexico", "north-america"),
	"us":            country("us", "north-america"),
	"argentina":     country("argentina", "south-america"),
	"bolivia":       country("bolivia", "south-america"),
	"brazil":        country("brazil", "south-america"),
	"chile":         country("chile", "south-america"),
	"colombia":      country("colombia", "south-america"),
	"ecuador":       country("ecuador", "south-america"),
	"peru":          country("peru", "south-america"),
	"uruguay":       country("uruguay", "south-america"),
}

// isoCodes maps ISO 3166-1 alpha-2 codes to canonical region names.
var isoCodes = map[string]string{
	"eg": "egypt",
	"ma": "morocco",
	"za": "south-africa",
	"ng": "nigeria",
	"ke": "kenya",
	"cn": "china",
	"in": "india",
	"id": "indonesia",
	"il": "israel",
	"jp": "japan",
	"kr": "south-korea",
	"tw": "taiwan",
	"th": "thailand",
	"tr": "turkey",
	"vn": "vietnam",
	"au": "australia",
	"nz": "new-zealand",
	"cr": "costa-rica",
	"cu": "cuba",
	"gt": "guatemala",
	"ni": "nicaragua",
	"pa": "panama",
	"at": "austria",
	"be": "belgium",
	"cz": "czech-republic",
	"dk": "denmark",
	"fi": "finland",
	"fr": "france",
	"de": "germany",
	"gb": "great-britain",
	"uk": "great-britain",
	"gr": "greece",
	"hu": "hungary",
	"ie": "ireland",
	"it": "italy",
	"mc": "monaco",
	"nl": "netherlands",
	"no": "norway",
	"pl": "poland",
	"pt": "portugal",
	"ro": "romania",
	"es": "spain",
	"se": "sweden",
	"ch": "switzerland",
	"ua": "ukraine",
	"ca": "canada",
	"mx": "mexico",
	"usa": "us",
	"ar": "argentina",
	"bo": "bolivia",
	"br": "brazil",
	"cl": "chile",
	"co": "colombia",
	"ec": "ecuador",
	"pe": "peru",
	"uy": "uruguay",
}
