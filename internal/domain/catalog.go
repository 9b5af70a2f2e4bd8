package domain

// DefaultChallenges is the challenge catalog seeded into empty stores.
func DefaultChallenges() []Challenge {
	return []Challenge{
		{
			ID:               "1",
			Title:            "Meatless Monday",
			Description:      "Skip meat for one full day.",
			Category:         CategoryFood,
			Difficulty:       DifficultyEasy,
			DurationDays:     1,
			RewardPoints:     50,
			CO2SavingKg:      2.5,
			ParticipantCount: 1250,
		},
		{
			ID:               "2",
			Title:            "Public Transport Week",
			Description:      "Use public transport instead of driving for a week.",
			Category:         CategoryTransport,
			Difficulty:       DifficultyMedium,
			DurationDays:     7,
			RewardPoints:     200,
			CO2SavingKg:      15,
			ParticipantCount: 890,
		},
		{
			ID:               "3",
			Title:            "Energy Saver",
			Description:      "Cut household electricity use for a month.",
			Category:         CategoryEnergy,
			Difficulty:       DifficultyHard,
			DurationDays:     30,
			RewardPoints:     500,
			CO2SavingKg:      45,
			ParticipantCount: 450,
		},
	}
}

// DefaultRecommendations is the recommendation catalog seeded into empty stores.
func DefaultRecommendations() []Recommendation {
	return []Recommendation{
		{
			ID:               "1",
			Title:            "Switch to public transport",
			Description:      "Replace short car trips with bus or rail.",
			ImpactEstimateKg: 2.5,
			Category:         CategoryTransport,
		},
		{
			ID:               "2",
			Title:            "Reduce meat consumption",
			Description:      "Swap two meat meals a week for plant based ones.",
			ImpactEstimateKg: 1.8,
			Category:         CategoryFood,
		},
		{
			ID:               "3",
			Title:            "Use energy-efficient appliances",
			Description:      "Replace old appliances and switch to LED lighting.",
			ImpactEstimateKg: 1.2,
			Category:         CategoryEnergy,
		},
		{
			ID:               "4",
			Title:            "Compost and recycle",
			Description:      "Separate food scraps and recyclables from landfill waste.",
			ImpactEstimateKg: 0.8,
			Category:         CategoryWaste,
		},
	}
}
