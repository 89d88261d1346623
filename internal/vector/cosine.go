package vector

import "math"

// MinScore 余弦相似度的下界，同时作为无效输入的哨兵值
// 调用方的排序/过滤逻辑无需对缺失向量做特殊分支
const MinScore = -1.0

// 避免零向量导致除零
const epsilon = 1e-12

// CosineSimilarity 计算两个向量的余弦相似度，结果落在[-1, 1]
// 任一向量为空返回哨兵值MinScore
// 维度不一致视为前置条件违反（embedding模型版本不匹配），
// 同样返回MinScore由调用方按数据噪声剔除，绝不静默截断比较
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return MinScore
	}
	if len(a) != len(b) {
		return MinScore
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + epsilon)
}
