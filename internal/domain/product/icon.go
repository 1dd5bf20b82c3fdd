package product

// Icon identifies one of the supported product pictograms.
type Icon uint8

// Supported icons. IconPackage is the fallback for unknown names.
const (
	IconPackage Icon = iota
	IconCoffee
	IconSandwich
	IconCakeSlice
	IconGlassWater
	IconVegan
	IconPizza
	IconCroissant
	IconCupSoda
	IconBeer
	IconWine
	IconIceCream
	IconCookie
	IconApple
	IconSoup
	IconBeef
	IconFish
	IconEgg
	IconMilk
	IconCandy
)

var iconNames = [...]string{
	IconPackage:    "Package",
	IconCoffee:     "Coffee",
	IconSandwich:   "Sandwich",
	IconCakeSlice:  "CakeSlice",
	IconGlassWater: "GlassWater",
	IconVegan:      "Vegan",
	IconPizza:      "Pizza",
	IconCroissant:  "Croissant",
	IconCupSoda:    "CupSoda",
	IconBeer:       "Beer",
	IconWine:       "Wine",
	IconIceCream:   "IceCream",
	IconCookie:     "Cookie",
	IconApple:      "Apple",
	IconSoup:       "Soup",
	IconBeef:       "Beef",
	IconFish:       "Fish",
	IconEgg:        "Egg",
	IconMilk:       "Milk",
	IconCandy:      "Candy",
}

var iconByName = func() map[string]Icon {
	m := make(map[string]Icon, len(iconNames))
	for i, name := range iconNames {
		m[name] = Icon(i)
	}
	return m
}()

// String returns the icon name.
func (i Icon) String() string {
	if int(i) < len(iconNames) {
		return iconNames[i]
	}
	return iconNames[IconPackage]
}

// LookupIcon resolves an icon by name. Unknown or legacy names resolve to
// IconPackage.
func LookupIcon(name string) Icon {
	if i, ok := iconByName[name]; ok {
		return i
	}
	return IconPackage
}

// Icons returns all supported icons in declaration order.
func Icons() []Icon {
	out := make([]Icon, len(iconNames))
	for i := range iconNames {
		out[i] = Icon(i)
	}
	return out
}
