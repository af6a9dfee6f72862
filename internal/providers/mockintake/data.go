package mockintake

import (
	"fmt"

	"olivia/internal/domain"
)

// Summary returns the canned call summary served in development mode.
func Summary() domain.CallSummary {
	return domain.CallSummary{
		DataQuality: domain.DataQualitySufficient,
		Meals: domain.Meals{
			Breakfast: "Oatmeal with berries",
			Lunch:     "Salad with grilled chicken",
			Dinner:    "Lean protein with vegetables, sometimes brown rice",
			Snacks:    "Fruits, nuts, and occasionally yogurt",
		},
		Exercise:  "Gym 3-4 times per week (cardio and light weights) | Daily 30-minute walks",
		Sleep:     "7-8 hours per night | Bedtime: 11 PM | Wake time: 7 AM",
		Beverages: "Water throughout the day | Morning coffee (1-2 cups) | Occasional green tea",
		Lifestyle: domain.Lifestyle{
			Smoking:  "No smoking",
			Alcohol:  "Occasionally on weekends, usually 1-2 glasses of wine",
			FastFood: "Rarely, maybe once every 2 weeks",
		},
		MentalHealth:    "Generally good. Experiences occasional stress from work, manages it with exercise and meditation.",
		AdditionalNotes: "Patient maintains a balanced diet and active lifestyle. Good sleep hygiene practices.",
	}
}

// InsufficientSummary is served when a transcript has no user messages.
func InsufficientSummary() domain.CallSummary {
	reason := "The user did not share any information during the call."
	return domain.CallSummary{
		DataQuality: domain.DataQualityInsufficient,
		Reason:      &reason,
	}
}

// GoalAnalysis returns the canned goal analysis for patientName.
func GoalAnalysis(patientName string) domain.GoalAnalysis {
	if patientName == "" {
		patientName = "there"
	}
	return domain.GoalAnalysis{
		Goal:           "Maintain healthy blood glucose levels through balanced diet and regular exercise",
		AlignmentScore: 78,
		Strengths: []string{
			"Eating a balanced diet with plenty of vegetables and lean protein",
			"Exercising regularly 3-4 times per week",
			"Maintaining good sleep hygiene with 7-8 hours per night",
			"Staying hydrated throughout the day",
			"Limiting fast food consumption",
		},
		AreasForImprovement: []string{
			"Consider adding more whole grains to breakfast routine",
			"Could benefit from tracking post-meal glucose levels more consistently",
			"Explore stress management techniques beyond current practices",
			"Consider reducing weekend alcohol consumption slightly",
		},
		Recommendations: []string{
			"Continue with current exercise routine, perhaps add one more session of strength training",
			"Try meal prepping on weekends to ensure consistent healthy eating during busy weekdays",
			"Consider using a CGM app to track glucose patterns after different meals",
			"Experiment with meditation or yoga for additional stress management",
			"Schedule a follow-up in 2 weeks to review progress",
		},
		Summary: fmt.Sprintf("%s, you're doing an excellent job managing your health! Your balanced diet and regular exercise routine are working well. "+
			"Your alignment score of 78%% shows strong progress toward your goals. Keep up the great work, and focus on the small improvements we discussed today.", patientName),
	}
}

// Goals returns the canned care-plan goals.
func Goals() []domain.Goal {
	return []domain.Goal{
		{
			ID:              1,
			Title:           "Consume more vegetables, aiming for 3-5 servings per day",
			Status:          domain.GoalStatusInProgress,
			CurrentBehavior: "You are currently including broccoli and tomatoes in your lunch, but it's unclear if you're reaching the target of 3-5 servings daily.",
			Recommendation:  "To help meet your vegetable goal, consider adding a serving of vegetables to your breakfast or dinner, such as spinach or bell peppers.",
		},
		{
			ID:             2,
			Title:          "Increase cruciferous vegetable intake to one serving per day",
			Status:         domain.GoalStatusNotStarted,
			Recommendation: "Try to include a cruciferous vegetable like broccoli or cauliflower in your meals a few times a week.",
		},
		{
			ID:              3,
			Title:           "Limit added fats to 2-3 servings per day, and added sugars to 5 or fewer servings per week",
			Status:          domain.GoalStatusAchieved,
			CurrentBehavior: "You are currently meeting this goal by limiting added fats and sugars.",
			Recommendation:  "Keep up the great work! Continue to check labels and be mindful of portion sizes.",
		},
	}
}

func hasUserMessage(transcript []domain.TranscriptMessage) bool {
	for _, msg := range transcript {
		if msg.Role == domain.RoleUser && msg.Content != "" {
			return true
		}
	}
	return false
}
