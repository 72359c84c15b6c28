package processors

import "strconv"

// 模型返回的JSON是松散类型的，这里做防御性转换

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asFloatList(v interface{}) []float64 {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []float64
	for _, item := range items {
		switch n := item.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				out = append(out, f)
			}
		}
	}
	return out
}
