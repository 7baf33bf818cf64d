package score

// domainCategories is the multi-category keyword gazetteer behind the
// domain-focus scorer. Each matched keyword adds 5 points to its category,
// capped at 20 per category, with breadth bonuses across categories.
var domainCategories = map[string][]string{
	"core": {
		"agri", "agro", "agriculture", "farm", "farming", "agtech", "agritech",
	},
	"technology": {
		"tech", "sensor", "drone", "satellite", "iot", "ai", "machine learning",
		"computer vision", "robotic", "software", "platform", "data",
	},
	"methods": {
		"precision farming", "precision agriculture", "vertical farming",
		"hydroponic", "aquaponic", "regenerative", "irrigation",
		"greenhouse", "no-till", "crop rotation",
	},
	"inputs": {
		"seed", "soil", "fertilizer", "pesticide", "biologicals", "water",
		"nutrient", "feed",
	},
	"products": {
		"crop", "yield", "harvest", "produce", "grain", "livestock", "dairy",
		"protein",
	},
	"supply_chain": {
		"supply chain", "traceability", "logistics", "cold chain",
		"food waste", "distribution", "marketplace", "farm-to-table",
	},
}

// marketIndicators signal go-to-market maturity; each match adds 8 points.
var marketIndicators = []string{
	"customer", "client", "market", "demand", "sales", "growers", "farmers",
	"adoption", "traction", "partnership",
}

// techIndicators signal engineering substance; each match adds 6 points.
var techIndicators = []string{
	"ai", "machine learning", "computer vision", "sensor", "iot", "drone",
	"satellite", "robotics", "automation", "api", "platform", "algorithm",
}

// viabilityIndicators signal business quality; each match adds 7 points.
var viabilityIndicators = []string{
	"team", "founder", "experienced", "track record", "partnership",
	"award", "backed", "investor", "profitable", "growing",
}
