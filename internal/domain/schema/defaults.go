package schema

// Semantic categories.
const (
	CategoryDemographic = "DEMO_BASIC"
	CategoryFamily      = "FAMILY_STATUS"
	CategoryJob         = "JOB_EDUCATION"
	CategoryIncome      = "INCOME_LEVEL"
	CategoryTech        = "TECH_OWNER"
	CategoryCar         = "CAR_OWNER"
	CategoryDrink       = "DRINK_HABIT"
	CategorySmoke       = "SMOKE_HABIT"
	CategoryMedia       = "MEDIA"
	CategoryPet         = "PET"
	CategoryHealth      = "HEALTH"
	CategoryLifestyle   = "LIFESTYLE"
	CategoryBeauty      = "BEAUTY"
	CategoryDigital     = "DIGITAL"
	CategoryTravel      = "TRAVEL"
	CategoryShopping    = "SHOPPING"
)

var incomeBands = []string{"0-100", "100-200", "200-300", "300-400", "400-500", "500-700", "700+"}

// DefaultConfig returns the built-in panel catalog.
func DefaultConfig() Config {
	return Config{
		Fields:   append(relationalFields(), vectorFields()...),
		Implied:  defaultImplied(),
		Derived:  defaultDerived(),
		Core:     []string{"gender", "age_band", "region", "marital_status", "job_title", "income_personal"},
		Baseline: []string{"gender", "age_band", "region"},
		Keywords: defaultKeywords(),
		CommonNegatives: []string{
			`^\s*(no|none|nothing|n/a)\s*[.!]?\s*$`,
			`\bnot interested\b`,
			`\bdon'?t use\b`,
			`\bdo not use\b`,
			`^\s*never\b`,
			`없음`,
			`없다`,
			`관심 없`,
			`해당 없`,
			`해당사항 없`,
			`이용 안`,
			`하지 않`,
		},
	}
}

// Default builds the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(DefaultConfig())
	if err != nil {
		panic("schema: invalid default catalog: " + err.Error())
	}
	return c
}

func relationalFields() []Field {
	return []Field{
		{
			Name: "gender", Label: "Gender", Type: TypeText, Source: SourceRelational,
			Column: "gender", Category: CategoryDemographic,
			Domain: []string{"M", "F"},
			Aliases: map[string][]string{
				"male": {"M"}, "man": {"M"}, "men": {"M"}, "남성": {"M"}, "남자": {"M"}, "남": {"M"},
				"female": {"F"}, "woman": {"F"}, "women": {"F"}, "여성": {"F"}, "여자": {"F"}, "여": {"F"},
			},
		},
		{
			Name: "age_band", Label: "Age group", Type: TypeAgeBand, Source: SourceRelational,
			Column: "birth_year", Category: CategoryDemographic,
			Aliases: map[string][]string{
				"young": {"20s", "30s"}, "mz": {"20s", "30s"}, "젊은층": {"20s", "30s"}, "청년": {"20s", "30s"},
				"middle-aged": {"40s", "50s"}, "중년": {"40s", "50s"}, "장년층": {"40s", "50s"},
				"senior": {"60s+"}, "elderly": {"60s+"}, "노년": {"60s+"}, "시니어": {"60s+"},
			},
		},
		{
			Name: "region", Label: "Region", Type: TypeText, Source: SourceRelational,
			Column: "region_major", Category: CategoryDemographic, Finer: "region_minor",
			Domain: []string{
				"Seoul", "Busan", "Daegu", "Incheon", "Gwangju", "Daejeon", "Ulsan", "Sejong", "Gyeonggi",
				"Gangwon", "Chungbuk", "Chungnam", "Jeonbuk", "Jeonnam", "Gyeongbuk", "Gyeongnam", "Jeju",
			},
			Aliases: map[string][]string{
				"서울": {"Seoul"}, "부산": {"Busan"}, "대구": {"Daegu"}, "인천": {"Incheon"},
				"광주": {"Gwangju"}, "대전": {"Daejeon"}, "울산": {"Ulsan"}, "세종": {"Sejong"},
				"경기": {"Gyeonggi"}, "강원": {"Gangwon"}, "충북": {"Chungbuk"}, "충남": {"Chungnam"},
				"전북": {"Jeonbuk"}, "전남": {"Jeonnam"}, "경북": {"Gyeongbuk"}, "경남": {"Gyeongnam"},
				"제주": {"Jeju"},
				"capital area": {"Seoul", "Gyeonggi", "Incheon"}, "수도권": {"Seoul", "Gyeonggi", "Incheon"},
			},
		},
		{
			Name: "region_minor", Label: "District", Type: TypeText, Source: SourceRelational,
			Column: "region_minor", Category: CategoryDemographic,
		},
		{
			Name: "marital_status", Label: "Marital status", Type: TypeText, Source: SourceRelational,
			Column: "marital_status", Category: CategoryFamily,
			Domain: []string{"single", "married", "other"},
			Aliases: map[string][]string{
				"미혼": {"single"}, "unmarried": {"single"}, "기혼": {"married"},
				"이혼": {"other"}, "사별": {"other"}, "divorced": {"other"}, "widowed": {"other"},
			},
		},
		{
			Name: "children_count", Label: "Children", Type: TypeInteger, Source: SourceRelational,
			Column: "children_count", Category: CategoryFamily,
		},
		{
			Name: "family_size", Label: "Household size", Type: TypeInteger, Source: SourceRelational,
			Column: "family_size", Category: CategoryFamily,
		},
		{
			Name: "education_level", Label: "Education", Type: TypeText, Source: SourceRelational,
			Column: "education_level", Category: CategoryJob,
			Domain: []string{"high school or less", "college", "university", "graduate"},
			Aliases: map[string][]string{
				"고졸": {"high school or less"}, "대졸": {"university"}, "대학원": {"graduate"},
			},
		},
		{
			Name: "job_title", Label: "Occupation", Type: TypeText, Source: SourceRelational,
			Column: "job_title_raw", Category: CategoryJob, Finer: "job_duty",
			Domain: []string{
				"office worker", "professional", "manager", "self-employed", "student",
				"homemaker", "sales/service", "production/labor", "unemployed", "other",
			},
			Aliases: map[string][]string{
				"직장인":  {"office worker", "professional", "manager"},
				"employee": {"office worker", "professional", "manager"},
				"회사원":  {"office worker"},
				"학생":   {"student"},
				"자영업":  {"self-employed"},
				"주부":   {"homemaker"},
				"전문직":  {"professional"},
				"무직":   {"unemployed"},
			},
		},
		{
			Name: "job_duty", Label: "Job duty", Type: TypeText, Source: SourceRelational,
			Column: "job_duty_raw", Category: CategoryJob,
		},
		{
			Name: "income_personal", Label: "Personal income (10k KRW/month)", Type: TypeText,
			Source: SourceRelational, Column: "income_personal_monthly", Category: CategoryIncome,
			Domain: incomeBands,
			Aliases: map[string][]string{
				"high income": {"500-700", "700+"}, "고소득": {"500-700", "700+"},
				"low income": {"0-100", "100-200"}, "저소득": {"0-100", "100-200"},
			},
		},
		{
			Name: "income_household", Label: "Household income (10k KRW/month)", Type: TypeText,
			Source: SourceRelational, Column: "income_household_monthly", Category: CategoryIncome,
			Domain: incomeBands,
		},
		{
			Name: "phone_brand", Label: "Phone brand", Type: TypeText, Source: SourceRelational,
			Column: "phone_brand_raw", Category: CategoryTech, Finer: "phone_model",
			Domain: []string{"Apple", "Samsung", "LG", "Other"},
			Aliases: map[string][]string{
				"iphone": {"Apple"}, "아이폰": {"Apple"}, "애플": {"Apple"},
				"galaxy": {"Samsung"}, "갤럭시": {"Samsung"}, "삼성": {"Samsung"},
			},
		},
		{
			Name: "phone_model", Label: "Phone model", Type: TypeText, Source: SourceRelational,
			Column: "phone_model_raw", Category: CategoryTech,
		},
		{
			Name: "owned_electronics", Label: "Owned electronics", Type: TypeList, Source: SourceRelational,
			Column: "owned_electronics", Category: CategoryTech,
		},
		{
			Name: "car_ownership", Label: "Car ownership", Type: TypeText, Source: SourceRelational,
			Column: "car_ownership", Category: CategoryCar,
			Domain: []string{"yes", "no"},
			Aliases: map[string][]string{
				"있다": {"yes"}, "있음": {"yes"}, "보유": {"yes"}, "owner": {"yes"},
				"없다": {"no"}, "없음": {"no"}, "미보유": {"no"}, "none": {"no"},
			},
		},
		{
			Name: "car_manufacturer", Label: "Car manufacturer", Type: TypeText, Source: SourceRelational,
			Column: "car_manufacturer_raw", Category: CategoryCar, Finer: "car_model",
			Aliases: map[string][]string{
				"현대": {"Hyundai"}, "기아": {"Kia"}, "제네시스": {"Genesis"}, "벤츠": {"Mercedes-Benz"},
				"mercedes": {"Mercedes-Benz"}, "비엠더블유": {"BMW"}, "테슬라": {"Tesla"},
			},
		},
		{
			Name: "car_model", Label: "Car model", Type: TypeText, Source: SourceRelational,
			Column: "car_model_raw", Category: CategoryCar,
		},
		{
			Name: "smoking_experience", Label: "Smoking", Type: TypeText, Source: SourceRelational,
			Column: "smoking_experience", Category: CategorySmoke,
			Domain: []string{"daily", "occasional", "former", "never"},
			Aliases: map[string][]string{
				"smoker": {"daily", "occasional"}, "흡연자": {"daily", "occasional"}, "흡연": {"daily", "occasional"},
				"non-smoker": {"never"}, "비흡연": {"never"}, "금연": {"former"},
			},
		},
		{
			Name: "smoking_brand", Label: "Cigarette brand", Type: TypeText, Source: SourceRelational,
			Column: "smoking_brand_raw", Category: CategorySmoke,
		},
		{
			Name: "drinking_experience", Label: "Drinking", Type: TypeText, Source: SourceRelational,
			Column: "drinking_experience", Category: CategoryDrink,
			Domain: []string{"frequently", "occasionally", "rarely", "never"},
			Aliases: map[string][]string{
				"drinker": {"frequently", "occasionally"}, "음주": {"frequently", "occasionally"},
				"non-drinker": {"never"}, "비음주": {"never"}, "금주": {"never"},
			},
		},
	}
}

func vectorFields() []Field {
	survey := func(name, label, question, category string, negatives ...string) Field {
		return Field{
			Name: name, Label: label, Type: TypeText, Source: SourceVector,
			Collection: CollectionSurvey, Question: question, Category: category,
			Negatives: negatives,
		}
	}
	multi := func(f Field) Field {
		f.Type = TypeList
		return f
	}
	profile := func(name, label, category string) Field {
		return Field{
			Name: name, Label: label, Type: TypeText, Source: SourceVector,
			Collection: CollectionFreeText, Category: category, Hidden: true,
		}
	}

	return []Field{
		survey("ott_count", "OTT services used",
			"How many OTT streaming services do you currently use?", CategoryMedia,
			`\b0\b`, `0개`, `none`, `안 봄`),
		survey("pet_experience", "Pet experience",
			"Do you have, or have you ever had, a pet?", CategoryPet,
			`never (had|owned)`, `no pets?`, `키워 본 적 없`, `키운 적 없`),
		survey("pet_type", "Pet type", "What kind of pet do you have?", CategoryPet),
		multi(survey("physical_activity", "Physical activity",
			"What do you usually do to stay fit? Select all that apply.", CategoryHealth,
			`하지 않`, `don'?t exercise`)),
		survey("stress_relief_method", "Stress relief",
			"How do you usually relieve stress?", CategoryLifestyle),
		survey("skincare_spending", "Monthly skincare spending",
			"How much do you spend on skincare products per month?", CategoryBeauty,
			`0원`, `don'?t buy`, `구매하지 않`),
		survey("ai_chatbot_main", "Main AI chatbot",
			"Which AI chatbot service do you mainly use?", CategoryDigital,
			`never used`, `사용해 본 적 없`),
		survey("most_used_app", "Most used app",
			"Which app do you use the most these days?", CategoryDigital),
		multi(survey("overseas_travel_pref", "Travel destination",
			"If you traveled abroad this year, where would you like to go?", CategoryTravel,
			`no plans?`, `가지 않`)),
		survey("fast_delivery_usage", "Fast delivery usage",
			"For which products do you mainly use same-day or dawn delivery?", CategoryShopping,
			`직접 구매`, `buy in store`),
		survey("traditional_market_freq", "Traditional market visits",
			"How often do you visit traditional markets?", CategoryShopping,
			`가지 않`),

		profile("profile_basic", "Profile summary", CategoryDemographic),
		profile("profile_family", "Family summary", CategoryFamily),
		profile("profile_job", "Job summary", CategoryJob),
		profile("profile_tech", "Devices summary", CategoryTech),
		profile("profile_car", "Car summary", CategoryCar),
		profile("profile_habits", "Habits summary", CategoryDrink),
	}
}

func defaultImplied() map[string][]string {
	return map[string][]string{
		"car_model":        {"car_manufacturer", "car_ownership"},
		"car_manufacturer": {"car_ownership"},
		"phone_model":      {"phone_brand"},
		"region_minor":     {"region"},
		"smoking_brand":    {"smoking_experience"},
		"pet_type":         {"pet_experience"},
		"job_duty":         {"job_title"},
	}
}

func defaultDerived() []DerivedRule {
	return []DerivedRule{
		{Parent: "car_ownership", Child: "car_manufacturer", Positive: []string{"yes"}},
		{Parent: "smoking_experience", Child: "smoking_brand", Positive: []string{"daily", "occasional"}},
		{Parent: "pet_experience", Child: "pet_type"},
	}
}

func defaultKeywords() map[string][]string {
	return map[string][]string{
		CategoryMedia:     {"ott", "netflix", "streaming", "tving", "wavve", "disney", "넷플릭스", "티빙", "스트리밍", "드라마"},
		CategoryPet:       {"pet", "cat", "dog", "반려", "고양이", "강아지"},
		CategoryHealth:    {"exercise", "exercised", "fitness", "workout", "gym", "diet", "운동", "헬스", "다이어트"},
		CategoryLifestyle: {"stress", "stressful", "hobby", "hobbies", "스트레스", "취미"},
		CategoryBeauty:    {"skin", "skincare", "cosmetic", "beauty", "스킨케어", "화장품", "피부"},
		CategoryDigital:   {"chatbot", "chatgpt", "app", "챗봇", "앱"},
		CategoryTravel:    {"travel", "travelling", "travelled", "trip", "overseas", "여행", "해외"},
		CategoryShopping:  {"delivery", "shopping", "market", "배송", "쇼핑", "시장"},
		CategoryCar:       {"car", "vehicle", "drive", "driving", "driver", "차량", "자동차", "운전"},
		CategoryTech:      {"phone", "smartphone", "iphone", "galaxy", "electronics", "휴대폰", "스마트폰", "가전"},
		CategorySmoke:     {"smoke", "smoked", "smoker", "smoking", "cigarette", "흡연", "담배"},
		CategoryDrink:     {"drink", "alcohol", "beer", "soju", "wine", "음주", "술"},
		CategoryIncome:    {"income", "salary", "소득", "연봉", "월급"},
		CategoryFamily:    {"married", "marriage", "family", "families", "child", "children", "kids", "결혼", "자녀", "가족"},
		CategoryJob:       {"job", "occupation", "office", "education", "직업", "직장", "학력"},
	}
}
